package extract

import (
    "fmt"
    "strings"

    fitz "github.com/gen2brain/go-fitz"
    "github.com/pdfcpu/pdfcpu/pkg/api"
)

// pdfText extracts text from every page of a local PDF, pages joined with a
// blank line. The pdfcpu page count doubles as a validity check before MuPDF
// opens the file.
func pdfText(localPath string) (string, error) {
    pages, err := api.PageCountFile(localPath)
    if err != nil {
        return "", fmt.Errorf("pdf page count failed: %w", err)
    }
    if pages == 0 {
        return "", nil
    }

    doc, err := fitz.New(localPath)
    if err != nil {
        return "", fmt.Errorf("open pdf: %w", err)
    }
    defer doc.Close()

    var parts []string
    for i := 0; i < doc.NumPage(); i++ {
        text, err := doc.Text(i)
        if err != nil {
            return "", fmt.Errorf("text page %d: %w", i+1, err)
        }
        parts = append(parts, text)
    }
    return strings.Join(parts, "\n\n"), nil
}

package preview

import (
	"errors"
	"fmt"
	"image"

	fitz "github.com/gen2brain/go-fitz"
)

// PDFRasterizer renders PDF (and other MuPDF-supported paged formats)
// first pages via go-fitz.
type PDFRasterizer struct{}

func (PDFRasterizer) FirstPage(data []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer doc.Close()
	if doc.NumPage() == 0 {
		return nil, errors.New("document has no pages")
	}
	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("render page 1: %w", err)
	}
	return img, nil
}

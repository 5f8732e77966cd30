package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "image/jpeg"
	_ "image/png"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

const certificateDateLayout = "January 2, 2006"

type RenderInput struct {
	StudentName      string
	CourseName       string
	CertificateTitle string
	InstructorName   string
	IssueDate        time.Time
	CredentialID     string
	TemplatePath     string
}

// Renderer produces the certificate artifact and returns where it is stored.
type Renderer interface {
	Render(ctx context.Context, in RenderInput) (string, error)
}

// ArtifactRenderer picks the output format from the template extension:
// HTML templates are printed to PDF through headless Chrome, images are
// drawn on with gg and stay PNG.
type ArtifactRenderer struct {
	Uploader Uploader
	font     *truetype.Font
}

func NewArtifactRenderer(up Uploader, fontPath string) (*ArtifactRenderer, error) {
	r := &ArtifactRenderer{Uploader: up}
	if strings.TrimSpace(fontPath) == "" {
		return r, nil
	}
	raw, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("read certificate font: %w", err)
	}
	f, err := truetype.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse certificate font: %w", err)
	}
	r.font = f
	return r, nil
}

func (r *ArtifactRenderer) Render(ctx context.Context, in RenderInput) (string, error) {
	var artifact Artifact
	switch ext := strings.ToLower(filepath.Ext(in.TemplatePath)); ext {
	case ".html", ".htm":
		htmlData, err := generateCertificateHTML(in)
		if err != nil {
			return "", fmt.Errorf("render certificate html: %w", err)
		}
		pdf, err := generatePDFFromHTML(ctx, htmlData)
		if err != nil {
			return "", fmt.Errorf("print certificate pdf: %w", err)
		}
		artifact = Artifact{Name: in.CredentialID + ".pdf", ContentType: "application/pdf", Data: pdf}
	case ".png", ".jpg", ".jpeg":
		img, err := r.generateCertificateImage(in)
		if err != nil {
			return "", fmt.Errorf("render certificate image: %w", err)
		}
		artifact = Artifact{Name: in.CredentialID + ".png", ContentType: "image/png", Data: img}
	default:
		return "", fmt.Errorf("unsupported certificate template %q", in.TemplatePath)
	}

	url, err := r.Uploader.Upload(ctx, artifact)
	if err != nil {
		return "", err
	}
	return url, nil
}

type certificateView struct {
	StudentName      string
	CourseName       string
	CertificateTitle string
	InstructorName   string
	IssueDate        string
	CredentialID     string
}

func newCertificateView(in RenderInput) certificateView {
	return certificateView{
		StudentName:      in.StudentName,
		CourseName:       in.CourseName,
		CertificateTitle: in.CertificateTitle,
		InstructorName:   in.InstructorName,
		IssueDate:        in.IssueDate.Format(certificateDateLayout),
		CredentialID:     in.CredentialID,
	}
}

func generateCertificateHTML(in RenderInput) (string, error) {
	tmpl, err := template.ParseFiles(in.TemplatePath)
	if err != nil {
		return "", err
	}

	var rendered bytes.Buffer
	if err := tmpl.Execute(&rendered, newCertificateView(in)); err != nil {
		return "", err
	}
	return rendered.String(), nil
}

func generatePDFFromHTML(parent context.Context, htmlContent string) ([]byte, error) {
	ctx, cancel := chromedp.NewContext(parent)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, 45*time.Second)
	defer cancelTimeout()

	var pdfBuffer []byte
	err := chromedp.Run(ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, htmlContent).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			pdf, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithLandscape(true).
				Do(ctx)
			if err != nil {
				return err
			}
			pdfBuffer = pdf
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}
	return pdfBuffer, nil
}

func (r *ArtifactRenderer) face(points float64) font.Face {
	if r.font == nil {
		return basicfont.Face7x13
	}
	return truetype.NewFace(r.font, &truetype.Options{Size: points})
}

func (r *ArtifactRenderer) generateCertificateImage(in RenderInput) ([]byte, error) {
	background, err := gg.LoadImage(in.TemplatePath)
	if err != nil {
		return nil, err
	}

	dc := gg.NewContextForImage(background)
	w, h := float64(dc.Width()), float64(dc.Height())
	view := newCertificateView(in)

	lines := []struct {
		text   string
		y      float64
		points float64
	}{
		{view.CertificateTitle, 0.22, 56},
		{"This certifies that", 0.36, 24},
		{view.StudentName, 0.46, 48},
		{"has successfully completed " + view.CourseName, 0.58, 28},
		{"Instructor: " + view.InstructorName, 0.72, 22},
		{"Issued " + view.IssueDate, 0.79, 22},
		{"Credential ID: " + view.CredentialID, 0.90, 18},
	}

	dc.SetColor(color.Black)
	for _, line := range lines {
		if line.text == "" {
			continue
		}
		dc.SetFontFace(r.face(line.points))
		dc.DrawStringAnchored(line.text, w/2, h*line.y, 0.5, 0.5)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

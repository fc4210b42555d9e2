package profile

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// MaxResumeSize caps uploaded résumé files.
const MaxResumeSize = 5 << 20

// ExtractResumeText returns the plain text of a PDF résumé with runs of
// whitespace collapsed.
func ExtractResumeText(data []byte) (text string, err error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty resume")
	}
	if len(data) > MaxResumeSize {
		return "", fmt.Errorf("resume exceeds %d bytes", MaxResumeSize)
	}
	// The pdf reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting text: %w", err)
	}
	raw, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("reading text: %w", err)
	}
	return strings.Join(strings.Fields(string(raw)), " "), nil
}

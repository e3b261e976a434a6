package latex

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// OutputPath lays invoices out as root/client/yyyy/mm/number.pdf.
func OutputPath(root, clientID, number string, periodStart time.Time) string {
	return filepath.Join(root, clientID, periodStart.Format("2006"), periodStart.Format("01"), number+".pdf")
}

// SourcePath is the .tex file that sits beside a PDF output path.
func SourcePath(pdfPath string) string {
	return strings.TrimSuffix(pdfPath, filepath.Ext(pdfPath)) + ".tex"
}

// WriteSource saves LaTeX source to path, creating parent directories.
func WriteSource(path, source string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(source), 0o644)
}

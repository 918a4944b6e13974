package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"drawing-interpreter/internal/interpreter/models"
)

// ============================================================
// File Archive
// ============================================================

// FileArchive stores full results as <root>/<sheet>/<session>.json.
type FileArchive struct {
	root string
}

func NewFileArchive(root string) *FileArchive {
	return &FileArchive{root: root}
}

func (a *FileArchive) SheetDir(sheet string) string {
	return filepath.Join(a.root, safeName(sheet))
}

func (a *FileArchive) ResultPath(sheet, sessionID string) string {
	return filepath.Join(a.SheetDir(sheet), safeName(sessionID)+".json")
}

func (a *FileArchive) EnsureSheetDir(sheet string) error {
	if err := os.MkdirAll(a.SheetDir(sheet), 0o755); err != nil {
		return fmt.Errorf("mkdir sheet dir: %w", err)
	}
	return nil
}

func (a *FileArchive) Save(result *models.DrawingInterpretationResult) error {
	if err := a.EnsureSheetDir(result.SheetName); err != nil {
		return err
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return os.WriteFile(a.ResultPath(result.SheetName, result.SessionID), data, 0o644)
}

func (a *FileArchive) Load(sheet, sessionID string) (*models.DrawingInterpretationResult, error) {
	data, err := os.ReadFile(a.ResultPath(sheet, sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var result models.DrawingInterpretationResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &result, nil
}

// safeName keeps letters, digits, dash and underscore.
func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unnamed"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}

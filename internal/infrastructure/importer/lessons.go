// Package importer loads lesson content from spreadsheets.
package importer

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/featherlingo/featherlingo-api/internal/domain/lesson"
)

// Columns recognised in the header row. Order in the sheet does not matter.
const (
	ColLessonID      = "lesson_id"
	ColTitle         = "title"
	ColDescription   = "description"
	ColLanguage      = "language"
	ColUnit          = "unit"
	ColOrder         = "order"
	ColDifficulty    = "difficulty"
	ColXP            = "xp"
	ColFeathers      = "feathers"
	ColPrerequisites = "prerequisites"
	ColExerciseType  = "exercise_type"
	ColPrompt        = "prompt"
	ColOptions       = "options"
	ColAnswer        = "answer"
	ColPoints        = "points"
)

var requiredColumns = []string{ColLessonID, ColTitle, ColLanguage, ColExerciseType, ColPrompt, ColAnswer}

// ImportConfig defines the import configuration.
type ImportConfig struct {
	// SheetName defaults to the first sheet.
	SheetName string

	// Activate marks imported lessons active.
	Activate bool

	// DryRun parses and validates without writing.
	DryRun bool
}

// ImportResult holds the result of an import operation.
type ImportResult struct {
	RowsProcessed int
	Lessons       int
	Written       int
	Errors        []string
}

// LessonWriter is the part of lesson.Repository the importer needs.
type LessonWriter interface {
	Upsert(ctx context.Context, l *lesson.Lesson) error
}

// Importer reads lessons from XLSX workbooks.
// Each row is one exercise; rows sharing a lesson_id form one lesson,
// and the lesson-level columns are taken from its first row.
type Importer struct {
	repo LessonWriter
}

// New creates an Importer.
func New(repo LessonWriter) *Importer {
	return &Importer{repo: repo}
}

// ImportFile imports a workbook from disk.
func (im *Importer) ImportFile(ctx context.Context, path string, cfg ImportConfig) (*ImportResult, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	return im.importWorkbook(ctx, f, cfg)
}

// Import imports a workbook from r.
func (im *Importer) Import(ctx context.Context, r io.Reader, cfg ImportConfig) (*ImportResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read workbook: %w", err)
	}
	defer f.Close()

	return im.importWorkbook(ctx, f, cfg)
}

func (im *Importer) importWorkbook(ctx context.Context, f *excelize.File, cfg ImportConfig) (*ImportResult, error) {
	sheet := cfg.SheetName
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}

	lessons, result, err := ParseRows(rows, cfg.Activate)
	if err != nil {
		return nil, err
	}
	if cfg.DryRun || im.repo == nil {
		return result, nil
	}

	for _, l := range lessons {
		if err := im.repo.Upsert(ctx, l); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("lesson %s: %v", l.ID, err))
			continue
		}
		result.Written++
	}
	return result, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Parsing
// ─────────────────────────────────────────────────────────────────────────────

type draft struct {
	params   lesson.NewLessonParams
	firstRow int
}

// ParseRows turns sheet rows (header first) into validated lessons.
// Row-level problems are collected in the result; only a broken header fails the call.
func ParseRows(rows [][]string, activate bool) ([]*lesson.Lesson, *ImportResult, error) {
	result := &ImportResult{Errors: make([]string, 0)}
	if len(rows) == 0 {
		return nil, result, fmt.Errorf("sheet is empty")
	}

	index := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, result, fmt.Errorf("missing column %q", col)
		}
	}

	cell := func(row []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var order []string
	drafts := make(map[string]*draft)

	for n, row := range rows[1:] {
		rowNum := n + 2
		id := cell(row, ColLessonID)
		if id == "" {
			continue
		}
		result.RowsProcessed++

		points, err := optionalInt(cell(row, ColPoints), 10)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: points: %v", rowNum, err))
			continue
		}
		ex := lesson.Exercise{
			Type:          lesson.ExerciseType(strings.ToLower(cell(row, ColExerciseType))),
			Prompt:        cell(row, ColPrompt),
			Options:       splitList(cell(row, ColOptions), "|"),
			CorrectAnswer: cell(row, ColAnswer),
			Points:        points,
		}

		d, ok := drafts[id]
		if !ok {
			p, err := lessonParams(id, row, cell, activate)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", rowNum, err))
				continue
			}
			d = &draft{params: p, firstRow: rowNum}
			drafts[id] = d
			order = append(order, id)
		}
		d.params.Exercises = append(d.params.Exercises, ex)
	}

	lessons := make([]*lesson.Lesson, 0, len(order))
	for _, id := range order {
		d := drafts[id]
		l, err := lesson.NewLesson(d.params)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("lesson %s (row %d): %v", id, d.firstRow, err))
			continue
		}
		lessons = append(lessons, l)
	}
	result.Lessons = len(lessons)

	return lessons, result, nil
}

func lessonParams(id string, row []string, cell func([]string, string) string, activate bool) (lesson.NewLessonParams, error) {
	unit, err := optionalInt(cell(row, ColUnit), 1)
	if err != nil {
		return lesson.NewLessonParams{}, fmt.Errorf("unit: %w", err)
	}
	ord, err := optionalInt(cell(row, ColOrder), 1)
	if err != nil {
		return lesson.NewLessonParams{}, fmt.Errorf("order: %w", err)
	}
	xp, err := optionalInt(cell(row, ColXP), 0)
	if err != nil {
		return lesson.NewLessonParams{}, fmt.Errorf("xp: %w", err)
	}
	feathers, err := optionalInt(cell(row, ColFeathers), 0)
	if err != nil {
		return lesson.NewLessonParams{}, fmt.Errorf("feathers: %w", err)
	}

	return lesson.NewLessonParams{
		ID:            id,
		Title:         cell(row, ColTitle),
		Description:   cell(row, ColDescription),
		Language:      cell(row, ColLanguage),
		Unit:          unit,
		Order:         ord,
		Difficulty:    lesson.Difficulty(strings.ToLower(cell(row, ColDifficulty))),
		Reward:        lesson.Reward{XP: xp, Feathers: feathers},
		Prerequisites: splitList(cell(row, ColPrerequisites), ","),
		IsActive:      activate,
	}, nil
}

func optionalInt(s string, fallback int) (int, error) {
	if s == "" {
		return fallback, nil
	}
	return strconv.Atoi(s)
}

func splitList(s, sep string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

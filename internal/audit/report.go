package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	ferrors "git.home.luguber.info/inful/blogbuilder/internal/foundation/errors"
)

// Report is the result of one audit run. Its JSON form is the
// audit_report.json file.
type Report struct {
	TotalPosts             int                  `json:"total_posts"`
	EmptyPosts             []ContentEntry       `json:"empty_posts"`
	MinimalContentPosts    []ContentEntry       `json:"minimal_content_posts"`
	PostsWithMissingImages []MissingImagesEntry `json:"posts_with_missing_images"`
	PostsWithBrokenImgTags []BrokenTagEntry     `json:"posts_with_broken_img_tags"`
	Findings               []Finding            `json:"findings"`
	Errors                 []FileError          `json:"errors"`
	Counts                 Counts               `json:"counts"`
}

// ContentEntry describes an empty or minimal post.
type ContentEntry struct {
	File           string `json:"file"`
	ContentLength  int    `json:"content_length"`
	ContentPreview string `json:"content_preview"`
}

// MissingImagesEntry lists the srcs of one post whose target is missing.
type MissingImagesEntry struct {
	File          string   `json:"file"`
	MissingImages []string `json:"missing_images"`
}

// BrokenTagEntry flags a post with at least one img lacking a src.
type BrokenTagEntry struct {
	File  string `json:"file"`
	Issue string `json:"issue"`
}

// Finding is the flat form of every flagged condition.
type Finding struct {
	File     string   `json:"file"`
	Category Category `json:"category"`
	Detail   string   `json:"detail"`
}

// FileError records a post the auditor could not examine.
type FileError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// Counts holds the number of findings per category.
type Counts struct {
	Empty        int `json:"empty"`
	Minimal      int `json:"minimal"`
	MissingMedia int `json:"missing_media"`
	BrokenTag    int `json:"broken_tag"`
}

// Total is the number of findings of any category.
func (c Counts) Total() int {
	return c.Empty + c.Minimal + c.MissingMedia + c.BrokenTag
}

// newReport returns a report whose lists encode as [] rather than null.
func newReport() *Report {
	return &Report{
		EmptyPosts:             []ContentEntry{},
		MinimalContentPosts:    []ContentEntry{},
		PostsWithMissingImages: []MissingImagesEntry{},
		PostsWithBrokenImgTags: []BrokenTagEntry{},
		Findings:               []Finding{},
		Errors:                 []FileError{},
	}
}

func (r *Report) addFinding(file string, category Category, detail string) {
	r.Findings = append(r.Findings, Finding{File: file, Category: category, Detail: detail})
}

func (r *Report) tally() {
	r.Counts = Counts{}
	for _, f := range r.Findings {
		switch f.Category {
		case CategoryEmpty:
			r.Counts.Empty++
		case CategoryMinimal:
			r.Counts.Minimal++
		case CategoryMissingMedia:
			r.Counts.MissingMedia++
		case CategoryBrokenTag:
			r.Counts.BrokenTag++
		}
	}
}

func lengthDetail(n int) string {
	return fmt.Sprintf("%d chars", n)
}

// WriteJSON writes the report to <root>/audit_report.json.
func WriteJSON(root string, r *Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return ferrors.InternalError("failed to encode audit report").WithCause(err).Build()
	}
	data = append(data, '\n')
	target := filepath.Join(root, ReportFilename)
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return ferrors.FileSystemError("failed to write audit report").
			WithCause(err).
			WithContext("path", target).
			Build()
	}
	return nil
}

package mcp

import (
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/slidegen/internal/models"
)

// FormatJob renders a job as markdown for tool output
func FormatJob(job *models.Job) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Job %s\n\n", job.ID)
	fmt.Fprintf(&sb, "**Type:** %s\n", job.Type)
	fmt.Fprintf(&sb, "**Status:** %s\n", job.Status)
	fmt.Fprintf(&sb, "**Created:** %s\n", job.CreatedAt.Format(time.RFC3339))
	if job.FinishedAt != nil {
		fmt.Fprintf(&sb, "**Finished:** %s\n", job.FinishedAt.Format(time.RFC3339))
	}
	if job.Error != "" {
		fmt.Fprintf(&sb, "**Error:** %s\n", job.Error)
	}

	if r := job.Result; r != nil {
		if r.ImageURL != "" {
			fmt.Fprintf(&sb, "**Image:** %s\n", r.ImageURL)
		}
		if r.DeckURL != "" {
			fmt.Fprintf(&sb, "**Deck:** %s\n", r.DeckURL)
		}
		if len(r.Slides) > 0 {
			sb.WriteString("\n")
			sb.WriteString(FormatSlides(r.Slides))
		}
	}
	return sb.String()
}

// FormatSlides renders an outline as numbered headings with bullet lists
func FormatSlides(slides []models.Slide) string {
	var sb strings.Builder
	for i, s := range slides {
		fmt.Fprintf(&sb, "### %d. %s\n", i+1, s.Title)
		for _, b := range s.Bullets {
			fmt.Fprintf(&sb, "- %s\n", b)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatJobList renders a listing as a markdown table
func FormatJobList(list *JobList) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Jobs (%d)\n\n", list.Count)
	fmt.Fprintf(&sb, "queued %d, running %d, done %d, error %d\n\n",
		list.Stats.Queued, list.Stats.Running, list.Stats.Done, list.Stats.Error)

	if len(list.Jobs) == 0 {
		sb.WriteString("No jobs found.\n")
		return sb.String()
	}

	sb.WriteString("| ID | Type | Status | Created |\n|---|---|---|---|\n")
	for _, j := range list.Jobs {
		fmt.Fprintf(&sb, "| %s | %s | %s | %s |\n", j.ID, j.Type, j.Status, j.CreatedAt.Format(time.RFC3339))
	}
	return sb.String()
}

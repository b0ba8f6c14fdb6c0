package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/slidegen/internal/models"
	api "github.com/ternarybob/slidegen/internal/services/mcp"
)

const (
	waitTimeout  = 2 * time.Minute
	pollInterval = 500 * time.Millisecond
)

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(text)},
	}
}

func errorResult(format string, args ...interface{}) *mcp.CallToolResult {
	result := textResult(fmt.Sprintf(format, args...))
	result.IsError = true
	return result
}

// finish either reports the queued job or waits for it and renders the outcome
func finish(ctx context.Context, client *api.Client, request mcp.CallToolRequest, id string, logger arbor.ILogger) *mcp.CallToolResult {
	if !request.GetBool("wait", true) {
		return textResult(fmt.Sprintf("Job %s queued. Use job_status to follow it.", id))
	}

	waitCtx, cancel := context.WithTimeout(ctx, waitTimeout)
	defer cancel()

	job, err := client.WaitForJob(waitCtx, id, pollInterval)
	if err != nil {
		logger.Warn().Err(err).Str("job_id", id).Msg("Wait for job failed")
		return errorResult("Job %s did not finish: %v", id, err)
	}

	result := textResult(api.FormatJob(job))
	result.IsError = job.Status == models.JobStatusError
	return result
}

func handleGenerateOutline(client *api.Client, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		title, err := request.RequireString("title")
		if err != nil || strings.TrimSpace(title) == "" {
			return errorResult("Error: title parameter is required"), nil
		}

		id, err := client.GenerateOutline(ctx, &models.OutlineRequest{
			Title:    title,
			Audience: request.GetString("audience", ""),
			Length:   request.GetInt("length", 0),
			Style:    request.GetString("style", ""),
		})
		if err != nil {
			logger.Error().Err(err).Msg("generate_outline failed")
			return errorResult("Outline request failed: %v", err), nil
		}
		return finish(ctx, client, request, id, logger), nil
	}
}

func handleGenerateImage(client *api.Client, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		prompt, err := request.RequireString("prompt")
		if err != nil || strings.TrimSpace(prompt) == "" {
			return errorResult("Error: prompt parameter is required"), nil
		}

		id, err := client.GenerateImage(ctx, &models.ImageRequest{
			Prompt: prompt,
			Size:   request.GetString("size", ""),
			Style:  request.GetString("style", ""),
		})
		if err != nil {
			logger.Error().Err(err).Msg("generate_image failed")
			return errorResult("Image request failed: %v", err), nil
		}
		return finish(ctx, client, request, id, logger), nil
	}
}

func handleGenerateDeck(client *api.Client, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		outlineID, err := request.RequireString("outline_id")
		if err != nil || strings.TrimSpace(outlineID) == "" {
			return errorResult("Error: outline_id parameter is required"), nil
		}

		images, err := parseImageRefs(request.GetStringSlice("images", nil))
		if err != nil {
			return errorResult("Error: %v", err), nil
		}

		id, err := client.GenerateDeck(ctx, &models.DeckRequest{
			OutlineID: outlineID,
			Images:    images,
			Template:  request.GetString("template", ""),
		})
		if err != nil {
			logger.Error().Err(err).Msg("generate_deck failed")
			return errorResult("Deck request failed: %v", err), nil
		}
		return finish(ctx, client, request, id, logger), nil
	}
}

func handleJobStatus(client *api.Client, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("job_id")
		if err != nil || id == "" {
			return errorResult("Error: job_id parameter is required"), nil
		}

		job, err := client.Job(ctx, id)
		if err != nil {
			logger.Debug().Err(err).Str("job_id", id).Msg("job_status failed")
			return errorResult("Job lookup failed: %v", err), nil
		}
		return textResult(api.FormatJob(job)), nil
	}
}

func handleListJobs(client *api.Client, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		list, err := client.ListJobs(ctx, request.GetString("status", ""), request.GetString("type", ""))
		if err != nil {
			logger.Error().Err(err).Msg("list_jobs failed")
			return errorResult("List failed: %v", err), nil
		}
		return textResult(api.FormatJobList(list)), nil
	}
}

// parseImageRefs reads "slide:job_id" pairs
func parseImageRefs(values []string) ([]models.ImageRef, error) {
	refs := make([]models.ImageRef, 0, len(values))
	for _, v := range values {
		slide, jobID, ok := strings.Cut(strings.TrimSpace(v), ":")
		if !ok || jobID == "" {
			return nil, fmt.Errorf("image %q must be \"slide:image_job_id\"", v)
		}
		n, err := strconv.Atoi(slide)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("image %q has an invalid slide number", v)
		}
		refs = append(refs, models.ImageRef{Slide: n, ImageJob: jobID})
	}
	return refs, nil
}

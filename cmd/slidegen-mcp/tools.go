package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

func createGenerateOutlineTool() mcp.Tool {
	return mcp.NewTool("generate_outline",
		mcp.WithDescription("Generate a slide outline for a presentation"),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Presentation title"),
		),
		mcp.WithString("audience",
			mcp.Description("Who the presentation is for"),
		),
		mcp.WithNumber("length",
			mcp.Description("Number of slides (default: server setting, max: 50)"),
		),
		mcp.WithString("style",
			mcp.Description("Tone of the outline, e.g. professional, casual"),
		),
		mcp.WithBoolean("wait",
			mcp.Description("Wait for the job to finish (default: true)"),
		),
	)
}

func createGenerateImageTool() mcp.Tool {
	return mcp.NewTool("generate_image",
		mcp.WithDescription("Generate an image for a slide"),
		mcp.WithString("prompt",
			mcp.Required(),
			mcp.Description("What the image should show"),
		),
		mcp.WithString("size",
			mcp.Description("WIDTHxHEIGHT in pixels (default: 1024x1024)"),
		),
		mcp.WithString("style",
			mcp.Description("Visual style hint"),
		),
		mcp.WithBoolean("wait",
			mcp.Description("Wait for the job to finish (default: true)"),
		),
	)
}

func createGenerateDeckTool() mcp.Tool {
	return mcp.NewTool("generate_deck",
		mcp.WithDescription("Assemble a slide deck from an outline job and optional image jobs"),
		mcp.WithString("outline_id",
			mcp.Required(),
			mcp.Description("Job id of a finished outline"),
		),
		mcp.WithArray("images",
			mcp.WithStringItems(),
			mcp.Description("Image placements as \"slide:image_job_id\", e.g. \"2:5f0c...\""),
		),
		mcp.WithString("template",
			mcp.Description("Deck template name (default, dark, classic)"),
		),
		mcp.WithBoolean("wait",
			mcp.Description("Wait for the job to finish (default: true)"),
		),
	)
}

func createJobStatusTool() mcp.Tool {
	return mcp.NewTool("job_status",
		mcp.WithDescription("Show the status and result of a generation job"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("Job id returned by a generate tool"),
		),
	)
}

func createListJobsTool() mcp.Tool {
	return mcp.NewTool("list_jobs",
		mcp.WithDescription("List generation jobs"),
		mcp.WithString("status",
			mcp.Description("Filter: queued, running, done, error"),
		),
		mcp.WithString("type",
			mcp.Description("Filter: outline, image, deck"),
		),
	)
}

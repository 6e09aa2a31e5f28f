package tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"room-visualizer/common"
	"room-visualizer/internal/history"
	"room-visualizer/internal/pipeline"
	"room-visualizer/internal/utils"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// roomTools MCP tool 处理器
type roomTools struct {
	generator      pipeline.Generator
	store          history.Store
	recorder       *history.Recorder
	maxUploadBytes int64
}

// RegisterRoomTools 注册房间地板替换和历史查询的 MCP tools。
//
// 约定工具列表：
//   - generate_room  上传房间照片（URL 或 data URI），返回替换地板后的 PNG
//   - list_history   返回最近的生成记录（JSON）
func RegisterRoomTools(s *server.MCPServer, generator pipeline.Generator, store history.Store, recorder *history.Recorder, maxUploadBytes int64) error {
	if generator == nil {
		return fmt.Errorf("generator is required")
	}
	t := &roomTools{
		generator:      generator,
		store:          store,
		recorder:       recorder,
		maxUploadBytes: maxUploadBytes,
	}

	generateRoomTool := mcp.NewTool(
		"generate_room",
		mcp.WithDescription("Replace the floor of a room photo with the given material. Returns the generated PNG image and the prompt used."),
		mcp.WithString("image_url",
			mcp.Required(),
			mcp.Description("URL or data URI of the room photo (JPEG/PNG/WebP)"),
		),
		mcp.WithString("material",
			mcp.Description("Flooring material, e.g. \"Oak Wood\". Defaults to Marble."),
		),
	)
	s.AddTool(generateRoomTool, t.generateRoom)

	listHistoryTool := mcp.NewTool(
		"list_history",
		mcp.WithDescription("List the most recent successful generations, newest first."),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Maximum number of records to return (1-%d).", history.MaxRecent)),
		),
	)
	s.AddTool(listHistoryTool, t.listHistory)

	return nil
}

func (t *roomTools) generateRoom(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	imageURL, err := req.RequireString("image_url")
	if err != nil {
		common.WithError(err).Error("MCP: failed to get image_url parameter for generate_room")
		return mcp.NewToolResultError(fmt.Sprintf("image_url parameter is required: %v", err)), nil
	}
	material := req.GetString("material", "")

	data, declared, err := utils.LoadImage(ctx, imageURL, t.maxUploadBytes)
	if err != nil {
		common.WithError(err).Warn("MCP: failed to load room image")
		return mcp.NewToolResultError(fmt.Sprintf("failed to load image: %v", err)), nil
	}

	// 远程服务返回的 Content-Type 不一定可靠，非 image/* 时以内容嗅探为准
	if !strings.HasPrefix(declared, "image/") {
		declared = ""
	}
	mimeType, err := pipeline.ValidateImage(data, declared, t.maxUploadBytes)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := t.generator.Run(ctx, pipeline.GenerationRequest{
		Image:    data,
		MimeType: mimeType,
		Material: material,
	})
	if err != nil {
		common.WithError(err).WithField("stage", common.FailedStage(err)).Error("MCP: room generation failed")
		return mcp.NewToolResultError(fmt.Sprintf("generation failed at %s stage", common.FailedStage(err))), nil
	}

	t.recorder.Record(ctx, history.Entry{
		Material: result.Material,
		Prompt:   result.Prompt,
		Image:    result.Image,
		MimeType: result.MimeType,
	})

	return mcp.NewToolResultImage(
		fmt.Sprintf("Floor replaced with %s. Prompt used: %s", result.Material, result.Prompt),
		base64.StdEncoding.EncodeToString(result.Image),
		result.MimeType,
	), nil
}

func (t *roomTools) listHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if t.store == nil {
		return mcp.NewToolResultError("history is disabled (DATABASE_URL is not set)"), nil
	}

	limit := history.ClampLimit(req.GetInt("limit", history.MaxRecent))
	records, err := t.store.FindRecent(ctx, limit)
	if err != nil {
		common.WithError(err).Error("MCP: failed to load history")
		return mcp.NewToolResultError("failed to load history"), nil
	}
	if records == nil {
		records = []history.Record{}
	}

	payload, err := json.Marshal(records)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode history: %v", err)), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}

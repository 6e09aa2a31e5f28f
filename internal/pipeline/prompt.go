package pipeline

import (
	"fmt"
	"strings"

	"room-visualizer/common"
)

// QualitySuffix 追加在每个重绘提示词后的固定质量描述
const QualitySuffix = "Photorealistic, high gloss, 8k resolution."

const genericInstruction = "Describe this room briefly. Mention the lighting, the style, and where the floor is."

const optimizedInstruction = `You are an expert interior designer writing prompts for an image inpainting model.
Look at this room photo and write one inpainting prompt that replaces the existing floor with %[1]s.
Describe the new %[1]s floor (texture, color, finish) and how the room's lighting interacts with it: reflections, highlights and shadows cast onto the floor.
Keep the walls, furniture and overall style of the room unchanged.
Respond with the prompt text only, as a single paragraph, with no introduction, quotes or commentary.`

// BuildInstruction 生成发送给视觉模型的指令
func BuildInstruction(style, material string) string {
	if style == common.PromptStyleGeneric {
		return genericInstruction
	}
	return fmt.Sprintf(optimizedInstruction, material)
}

// ComposePrompt 组合最终提交给重绘模型的提示词，保证其中原样包含材质名称
func ComposePrompt(style, material, description string) string {
	body := strings.TrimRight(strings.TrimSpace(description), ". \n")

	parts := make([]string, 0, 3)
	if style == common.PromptStyleGeneric || !strings.Contains(body, material) {
		parts = append(parts, fmt.Sprintf("Replace the floor with %s.", material))
	}
	if body != "" {
		parts = append(parts, terminateSentence(body))
	}
	parts = append(parts, QualitySuffix)
	return strings.Join(parts, " ")
}

// terminateSentence 句末没有 ! 或 ? 时补一个句号
func terminateSentence(s string) string {
	if strings.HasSuffix(s, "!") || strings.HasSuffix(s, "?") {
		return s
	}
	return s + "."
}

// NormalizeMaterial 去除空白，空值时返回默认材质
func NormalizeMaterial(material, fallback string) string {
	if m := strings.TrimSpace(material); m != "" {
		return m
	}
	return fallback
}

package ai

import "strings"

const defaultProductLine = "the product"

// BuildPrompt turns gig metadata into the instruction sent to the video model.
func BuildPrompt(gig GigBrief) string {
	product := productLine(gig)

	builder := strings.Builder{}
	builder.WriteString("You are reviewing a user-generated marketing video for a brand campaign.\n\n")
	builder.WriteString("## Product\n")
	builder.WriteString(product)

	if campaign := campaignContext(gig, product); campaign != "" {
		builder.WriteString("\n\n## Campaign Context\n")
		builder.WriteString(campaign)
	}

	category := strings.TrimSpace(gig.Category)
	if category != "" && !strings.EqualFold(category, product) {
		builder.WriteString("\n\n## Category\n")
		builder.WriteString(category)
	}

	writeList(&builder, "Hooks", gig.Hooks)
	writeList(&builder, "Talking Points", gig.TalkingPoints)
	writeList(&builder, "Do", gig.Dos)
	writeList(&builder, "Don't", gig.Donts)

	builder.WriteString("\n\n## Task\n")
	builder.WriteString("1. Decide whether the video is about ")
	builder.WriteString(product)
	builder.WriteString(" and whether the product is clearly visible.\n")
	if gig.AIComplianceRequired {
		builder.WriteString("   Compliance is mandatory for this campaign; a video that does not feature the product must fail.\n")
	}
	builder.WriteString("2. Rate the overall commercial quality from 0 to 100.\n")
	builder.WriteString("3. Score hook, lighting, productClarity, authenticity and editing from 0 to 20 each.\n")
	builder.WriteString("4. Give concrete, specific tips the creator can act on.\n\n")

	builder.WriteString("Respond with ONLY a JSON object of exactly this shape:\n")
	builder.WriteString(`{"compliance": true, "quality": 0, "breakdown": {"hook": 0, "lighting": 0, "productClarity": 0, "authenticity": 0, "editing": 0}, "improvementTips": ["..."]}`)
	builder.WriteString("\n\nRules:\n")
	builder.WriteString("- \"compliance\" is a boolean.\n")
	builder.WriteString("- \"quality\" is an integer between 0 and 100.\n")
	builder.WriteString("- every breakdown value is an integer between 0 and 20.\n")
	builder.WriteString("- \"improvementTips\" is an array of strings written for this specific video.\n")
	builder.WriteString("- Do not output placeholder values such as \"tip 1\" or \"...\"; do not copy the example values.\n")
	builder.WriteString("- No markdown, no explanations outside the JSON.")

	return builder.String()
}

func productLine(gig GigBrief) string {
	for _, candidate := range []string{gig.ProductDescription, gig.Title, gig.Description} {
		if trimmed := strings.TrimSpace(candidate); trimmed != "" {
			return trimmed
		}
	}
	return defaultProductLine
}

func campaignContext(gig GigBrief, product string) string {
	parts := make([]string, 0, 2)
	for _, candidate := range []string{gig.Title, gig.Description} {
		trimmed := strings.TrimSpace(candidate)
		if trimmed == "" || strings.EqualFold(trimmed, product) {
			continue
		}
		duplicate := false
		for _, existing := range parts {
			if strings.EqualFold(existing, trimmed) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, "\n")
}

func writeList(builder *strings.Builder, heading string, items []string) {
	cleaned := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	if len(cleaned) == 0 {
		return
	}

	builder.WriteString("\n\n## ")
	builder.WriteString(heading)
	builder.WriteString("\n")
	for i, item := range cleaned {
		if i > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString("- ")
		builder.WriteString(item)
	}
}

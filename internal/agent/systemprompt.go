package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agentcore/core/internal/config"
	"github.com/agentcore/core/internal/skills"
	"github.com/agentcore/core/pkg/models"
)

// PromptSection is a labeled block of extra context folded into the system
// prompt (a workspace file, a skill's content, ...).
type PromptSection struct {
	Label   string
	Content string
}

// SkillSection is the rendered content of one eligible skill.
type SkillSection struct {
	Name        string
	Description string
	Content     string
}

// SystemPromptInputs holds the moment-of-invocation context the Execution
// Engine folds into the system prompt alongside the agent's static
// instructions (spec.md §4.6 "Prepare"): the compacted memory snapshot
// produced by the Memory Compactor (C7), session-scoped extra instructions,
// and a description line per enabled extension (C3 Tool Fabric).
type SystemPromptInputs struct {
	CompactedMemory       string
	ExtraInstructions     string
	ExtensionDescriptions []string
	Now                   time.Time
}

// BuildSystemPrompt assembles the system prompt for a turn by composing the
// agent's static persona and workspace files, its tool usage notes, its
// eligible skills, and the per-turn inputs in SystemPromptInputs. It is the
// "system prompt composed from..." step of the Execution Engine's Prepare
// phase.
func BuildSystemPrompt(cfg *config.Config, sessionID string, msg *models.Message, in SystemPromptInputs) (string, error) {
	if cfg == nil {
		return "", nil
	}
	if msg == nil {
		msg = &models.Message{}
	}

	notes, err := loadToolNotes(cfg)
	if err != nil {
		return "", fmt.Errorf("load tool notes: %w", err)
	}

	sections, err := loadWorkspaceSections(cfg)
	if err != nil {
		return "", fmt.Errorf("load workspace sections: %w", err)
	}

	heartbeat, err := loadHeartbeat(cfg, msg)
	if err != nil {
		return "", fmt.Errorf("load heartbeat: %w", err)
	}

	skillSections, err := loadSkillSections(cfg)
	if err != nil {
		return "", fmt.Errorf("load skill sections: %w", err)
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	return renderSystemPrompt(cfg, renderedPromptInputs{
		toolNotes:             notes,
		workspaceSections:     sections,
		heartbeat:             heartbeat,
		skillSections:         skillSections,
		compactedMemory:       strings.TrimSpace(in.CompactedMemory),
		extraInstructions:     strings.TrimSpace(in.ExtraInstructions),
		extensionDescriptions: normalizePromptLines(in.ExtensionDescriptions),
		now:                   now,
	}), nil
}

type renderedPromptInputs struct {
	toolNotes             string
	workspaceSections      []PromptSection
	heartbeat             string
	skillSections         []SkillSection
	compactedMemory       string
	extraInstructions     string
	extensionDescriptions []string
	now                   time.Time
}

func renderSystemPrompt(cfg *config.Config, in renderedPromptInputs) string {
	lines := make([]string, 0, 12)

	missingIdentity := cfg.Identity.Name == "" && cfg.Identity.Creature == "" && cfg.Identity.Vibe == "" && cfg.Identity.Emoji == ""
	missingUser := cfg.User.Name == "" && cfg.User.PreferredAddress == "" && cfg.User.Pronouns == "" && cfg.User.Timezone == "" && cfg.User.Notes == ""

	if !missingIdentity {
		parts := make([]string, 0, 4)
		for _, p := range []string{cfg.Identity.Name, cfg.Identity.Creature, cfg.Identity.Vibe, cfg.Identity.Emoji} {
			if p != "" {
				parts = append(parts, p)
			}
		}
		lines = append(lines, fmt.Sprintf("Identity: %s.", strings.Join(parts, ", ")))
	}

	if !missingUser {
		label := cfg.User.PreferredAddress
		if label == "" {
			label = cfg.User.Name
		}
		if label == "" {
			label = "User"
		}
		meta := make([]string, 0, 3)
		if cfg.User.Pronouns != "" {
			meta = append(meta, "pronouns: "+cfg.User.Pronouns)
		}
		if cfg.User.Timezone != "" {
			meta = append(meta, "timezone: "+cfg.User.Timezone)
		}
		if cfg.User.Notes != "" {
			meta = append(meta, "notes: "+cfg.User.Notes)
		}
		if len(meta) > 0 {
			lines = append(lines, fmt.Sprintf("%s (%s).", label, strings.Join(meta, ", ")))
		} else {
			lines = append(lines, fmt.Sprintf("%s.", label))
		}
	}

	if missingIdentity || missingUser {
		lines = append(lines, "If identity or user profile details are missing, ask the user for them and offer a few suggestions.")
	}

	for _, section := range normalizePromptSections(in.workspaceSections) {
		lines = append(lines, fmt.Sprintf("%s:\n%s", section.Label, section.Content))
	}

	if in.extraInstructions != "" {
		lines = append(lines, fmt.Sprintf("Session instructions:\n%s", in.extraInstructions))
	}

	if in.compactedMemory != "" {
		lines = append(lines, fmt.Sprintf("Memory (compacted from earlier turns):\n%s", in.compactedMemory))
	}

	if heartbeat := strings.TrimSpace(in.heartbeat); heartbeat != "" {
		lines = append(lines, fmt.Sprintf("Heartbeat checklist (only report new/changed items; reply HEARTBEAT_OK if nothing needs attention):\n%s", heartbeat))
	}

	if len(in.extensionDescriptions) > 0 {
		lines = append(lines, fmt.Sprintf("Enabled extensions:\n%s", strings.Join(in.extensionDescriptions, "\n")))
	}

	if notes := strings.TrimSpace(in.toolNotes); notes != "" {
		lines = append(lines, fmt.Sprintf("Tool notes:\n%s", notes))
	}

	if skillSections := normalizeSkillSections(in.skillSections); len(skillSections) > 0 {
		lines = append(lines, "\n# Skills\n")
		for _, skill := range skillSections {
			header := fmt.Sprintf("## %s", skill.Name)
			if skill.Description != "" {
				header += fmt.Sprintf("\n%s", skill.Description)
			}
			lines = append(lines, fmt.Sprintf("%s\n\n%s", header, skill.Content))
		}
	}

	lines = append(lines, fmt.Sprintf("Current time: %s.", in.now.Format(time.RFC3339)))
	lines = append(lines, "Do not exfiltrate secrets. Avoid destructive actions unless explicitly requested.")
	lines = append(lines, "Be concise, direct, and ask clarifying questions when requirements are ambiguous.")

	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func normalizePromptLines(lines []string) []string {
	if len(lines) == 0 {
		return nil
	}
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

func normalizePromptSections(sections []PromptSection) []PromptSection {
	if len(sections) == 0 {
		return nil
	}
	out := make([]PromptSection, 0, len(sections))
	for _, section := range sections {
		label := strings.TrimSpace(section.Label)
		content := strings.TrimSpace(section.Content)
		if label == "" || content == "" {
			continue
		}
		out = append(out, PromptSection{Label: label, Content: content})
	}
	return out
}

func normalizeSkillSections(sections []SkillSection) []SkillSection {
	if len(sections) == 0 {
		return nil
	}
	out := make([]SkillSection, 0, len(sections))
	for _, section := range sections {
		name := strings.TrimSpace(section.Name)
		content := strings.TrimSpace(section.Content)
		if name == "" || content == "" {
			continue
		}
		out = append(out, SkillSection{Name: name, Description: strings.TrimSpace(section.Description), Content: content})
	}
	return out
}

func isHeartbeatMessage(msg *models.Message) bool {
	if msg == nil {
		return false
	}
	if msg.Metadata != nil {
		if flag, ok := msg.Metadata["heartbeat"].(bool); ok && flag {
			return true
		}
	}
	content := strings.TrimSpace(strings.ToLower(msg.Text()))
	if content == "heartbeat" {
		return true
	}
	return strings.HasPrefix(content, "heartbeat ")
}

func loadToolNotes(cfg *config.Config) (string, error) {
	if cfg == nil {
		return "", nil
	}
	inline := strings.TrimSpace(cfg.Tools.Notes)
	filePath := strings.TrimSpace(cfg.Tools.NotesFile)
	if filePath == "" {
		workspaceFile := resolveWorkspaceFile(cfg, strings.TrimSpace(cfg.Workspace.ToolsFile))
		if !cfg.Workspace.Enabled || workspaceFile == "" {
			return inline, nil
		}
		filePath = workspaceFile
	}

	content, err := readPromptFileLimited(filePath, cfg.Workspace.MaxChars)
	if err != nil {
		return inline, err
	}
	if content == "" {
		return inline, nil
	}
	if inline == "" {
		return content, nil
	}
	return inline + "\n" + content, nil
}

func loadHeartbeat(cfg *config.Config, msg *models.Message) (string, error) {
	if cfg == nil || !cfg.Session.Heartbeat.Enabled {
		return "", nil
	}
	if strings.EqualFold(cfg.Session.Heartbeat.Mode, "on_demand") && !isHeartbeatMessage(msg) {
		return "", nil
	}
	path := strings.TrimSpace(cfg.Session.Heartbeat.File)
	if path == "" {
		return "", nil
	}
	return readPromptFile(path)
}

func loadWorkspaceSections(cfg *config.Config) ([]PromptSection, error) {
	if cfg == nil || !cfg.Workspace.Enabled {
		return nil, nil
	}

	sections := make([]PromptSection, 0, 5)
	add := func(label, filename string) error {
		path := resolveWorkspaceFile(cfg, filename)
		if path == "" {
			return nil
		}
		content, err := readPromptFileLimited(path, cfg.Workspace.MaxChars)
		if err != nil {
			return err
		}
		if strings.TrimSpace(content) == "" {
			return nil
		}
		sections = append(sections, PromptSection{Label: label, Content: content})
		return nil
	}

	if err := add("Workspace instructions", cfg.Workspace.AgentsFile); err != nil {
		return nil, err
	}
	if err := add("Persona and boundaries", cfg.Workspace.SoulFile); err != nil {
		return nil, err
	}
	if err := add("Workspace user profile", cfg.Workspace.UserFile); err != nil {
		return nil, err
	}
	if err := add("Workspace identity", cfg.Workspace.IdentityFile); err != nil {
		return nil, err
	}
	if err := add("Workspace memory", cfg.Workspace.MemoryFile); err != nil {
		return nil, err
	}

	return sections, nil
}

func loadSkillSections(cfg *config.Config) ([]SkillSection, error) {
	if cfg == nil {
		return nil, nil
	}

	mgr, err := skills.NewManager(&cfg.Skills, cfg.Workspace.Path, nil)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := mgr.Discover(ctx); err != nil {
		return nil, err
	}

	eligible := mgr.ListEligible()
	if len(eligible) == 0 {
		return nil, nil
	}

	sections := make([]SkillSection, 0, len(eligible))
	for _, skill := range eligible {
		content, err := mgr.LoadContent(skill.Name)
		if err != nil || content == "" {
			continue
		}
		sections = append(sections, SkillSection{Name: skill.Name, Description: skill.Description, Content: content})
	}

	return sections, nil
}

func resolveWorkspaceFile(cfg *config.Config, filename string) string {
	if cfg == nil {
		return ""
	}
	name := strings.TrimSpace(filename)
	if name == "" {
		return ""
	}
	if filepath.IsAbs(name) {
		return name
	}
	base := strings.TrimSpace(cfg.Workspace.Path)
	if base == "" {
		return name
	}
	return filepath.Join(base, name)
}

func readPromptFile(path string) (string, error) {
	return readPromptFileLimited(path, 0)
}

func readPromptFileLimited(path string, maxChars int) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	content := strings.TrimSpace(string(data))
	if maxChars <= 0 {
		return content, nil
	}
	runes := []rune(content)
	if len(runes) <= maxChars {
		return content, nil
	}
	truncated := strings.TrimSpace(string(runes[:maxChars]))
	if truncated == "" {
		return "", nil
	}
	return truncated + "\n...(truncated)", nil
}

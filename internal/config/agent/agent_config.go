package agent

// AgentDefaults holds persona and generation defaults.
type AgentDefaults struct {
	Workspace string `json:"workspace"`
	Model     string `json:"model"`
	// Models lists the choices offered by /model.
	Models []string `json:"models"`
	// PromptsDir holds the persona system prompt as *.txt files, read recursively.
	PromptsDir string `json:"promptsDir"`
	// NarratorPromptsDir holds the narrator system instruction.
	NarratorPromptsDir string `json:"narratorPromptsDir"`
	// KnowledgeFile is a YAML list of special dates.
	KnowledgeFile       string `json:"knowledgeFile"`
	KnowledgeReloadCron string `json:"knowledgeReloadCron"`
	WelcomeFile         string `json:"welcomeFile"`
	ShowStats           bool   `json:"showStats"`
	// PersonaName and UserName label the dialogue script shown to the narrator.
	PersonaName string `json:"personaName"`
	UserName    string `json:"userName"`
}

type AgentsConfig struct {
	Defaults AgentDefaults `json:"defaults"`
}

func defaultAgentDefaults() AgentDefaults {
	return AgentDefaults{
		Workspace: "~/.confidant/workspace",
		Model:     "gemini-2.5-flash",
		Models: []string{
			"gemini-2.5-flash",
			"gemini-2.5-pro",
			"gemini-2.0-flash",
		},
		PromptsDir:          "prompts/persona",
		NarratorPromptsDir:  "prompts/narrator",
		KnowledgeFile:       "knowledge/special_dates.yaml",
		KnowledgeReloadCron: "0 4 * * *",
		WelcomeFile:         "welcome.txt",
		ShowStats:           true,
		PersonaName:         "Persona",
		UserName:            "User",
	}
}

func DefaultAgentsConfig() AgentsConfig {
	return AgentsConfig{Defaults: defaultAgentDefaults()}
}

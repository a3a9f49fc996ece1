package domain

// WidgetConfig holds UI configuration for the chat widget
type WidgetConfig struct {
	Name               string `json:"name"`
	WelcomeMessage     string `json:"welcome_message"`
	Placeholder        string `json:"placeholder"`
	IdleTimeoutSeconds int    `json:"idle_timeout_seconds"`
	BaseURL            string `json:"base_url"`
}

// DefaultWidgetConfig returns default widget configuration
func DefaultWidgetConfig() WidgetConfig {
	return WidgetConfig{
		Name:               "Portfolio assistant",
		WelcomeMessage:     "Hello! How can I help you learn more about my work today?",
		Placeholder:        "Ask me anything...",
		IdleTimeoutSeconds: 300,
	}
}

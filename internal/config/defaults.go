package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5000
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 5 * time.Minute
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 32
	}
	if cfg.Server.CORSOrigins == nil {
		cfg.Server.CORSOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite3"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "./instance/app.db"
	}
	if cfg.Storage.UploadDir == "" {
		cfg.Storage.UploadDir = "./uploads"
	}
	if cfg.Storage.ArchiveIndexPath == "" {
		cfg.Storage.ArchiveIndexPath = "./instance/archive.bleve"
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "ollama"
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "http://localhost:11434"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "qwen3:0.6b"
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 120 * time.Second
	}
	if cfg.LLM.ProbeTimeout == 0 {
		cfg.LLM.ProbeTimeout = 5 * time.Second
	}

	if cfg.Agent.MaxExtractChars == 0 {
		cfg.Agent.MaxExtractChars = 4000
	}
	if cfg.Agent.SelectorTextChars == 0 {
		cfg.Agent.SelectorTextChars = 2000
	}
	if cfg.Agent.MaxKeyFields == 0 {
		cfg.Agent.MaxKeyFields = 10
	}
	if cfg.Agent.SummaryChars == 0 {
		cfg.Agent.SummaryChars = 3000
	}
	if cfg.Agent.SummaryMaxLength == 0 {
		cfg.Agent.SummaryMaxLength = 300
	}

	if cfg.Extract.PdfToTextPath == "" {
		cfg.Extract.PdfToTextPath = "pdftotext"
	}
	if cfg.Render.SofficePath == "" && cfg.Render.ConvertToPDF {
		cfg.Render.SofficePath = "soffice"
	}

	if cfg.Inbox.Directory == "" {
		cfg.Inbox.Directory = "./inbox"
	}
	if cfg.Inbox.Extensions == nil {
		cfg.Inbox.Extensions = []string{".pdf", ".docx", ".xlsx", ".txt", ".png", ".jpg"}
	}
	if cfg.Inbox.Debounce == 0 {
		cfg.Inbox.Debounce = 2 * time.Second
	}

	m := &cfg.Matching
	if m.TaxNumberWeight == 0 {
		m.TaxNumberWeight = 0.4
	}
	if m.EmailWeight == 0 {
		m.EmailWeight = 0.3
	}
	if m.FirstNameWeight == 0 {
		m.FirstNameWeight = 0.15
	}
	if m.LastNameWeight == 0 {
		m.LastNameWeight = 0.15
	}
	if m.CompanyNameWeight == 0 {
		m.CompanyNameWeight = 0.25
	}
	if m.PhoneWeight == 0 {
		m.PhoneWeight = 0.1
	}
	if m.CityWeight == 0 {
		m.CityWeight = 0.05
	}
	if m.PostalCodeWeight == 0 {
		m.PostalCodeWeight = 0.05
	}
}

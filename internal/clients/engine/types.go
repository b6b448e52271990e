package engine

import (
	"encoding/json"
	"strings"
)

type RunRequest struct {
	Prompt    string `json:"prompt"`
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
}

type RunResponse struct {
	RunID      string
	DatasetURL string
}

// UnmarshalJSON accepts the field spellings used by the automation engine's workflows.
func (r *RunResponse) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	r.RunID = firstString(raw, "runId", "run_id", "executionId", "id")
	r.DatasetURL = firstString(raw, "datasetUrl", "dataset_url", "datasetURL", "resultsUrl")
	return nil
}

func (r RunResponse) HasDataset() bool {
	return strings.TrimSpace(r.DatasetURL) != ""
}

// DatasetItem is one scraped job in the dataset the engine produced for a run.
type DatasetItem struct {
	ID          string
	Title       string
	Company     string
	Location    string
	URL         string
	Description string
	Recipient   string
	Subject     string
	Body        string
}

func (d *DatasetItem) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	d.ID = firstString(raw, "uuid", "jobid", "jobId", "job_id", "id")
	d.Title = firstString(raw, "title", "positionName", "jobTitle")
	d.Company = firstString(raw, "company", "companyName")
	d.Location = firstString(raw, "location")
	d.URL = firstString(raw, "url", "link", "jobUrl")
	d.Description = firstString(raw, "description")
	d.Recipient = firstString(raw, "recipient", "email", "to")
	d.Subject = firstString(raw, "subject")
	d.Body = firstString(raw, "body", "emailBody")
	return nil
}

// firstString returns the first alias present as a string or number.
func firstString(raw map[string]json.RawMessage, aliases ...string) string {
	for _, alias := range aliases {
		value, ok := raw[alias]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(value, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
			continue
		}
		var n json.Number
		if err := json.Unmarshal(value, &n); err == nil {
			return n.String()
		}
	}
	return ""
}

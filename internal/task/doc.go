// Package task defines the task model shared by the API client, the cache
// and the board.
//
// A task as returned by the API:
//
//	{
//	  "id": 12,
//	  "name": "Wire the login form",
//	  "description": "Use the shared input component",
//	  "status": "DOING",
//	  "teams": ["DESIGN", "FRONTEND"],
//	  "external_link": "https://example.com/spec",
//	  "attachments": [{"name": "mock.png", "url": "https://example.com/mock.png"}],
//	  "created_at": "2024-01-01T00:00:00Z",
//	  "updated_at": "2024-01-02T00:00:00Z",
//	  "created_by": 1
//	}
//
// # Status Values
//
//   - "TO_DO": shown in the "TO DO" column, named "To Do" in notices
//   - "DOING": shown in the "DOING" column, named "Doing" in notices
//   - "DONE": shown in the "DONE" column, named "Done" in notices
//
// # Validation
//
// Payloads sent to POST /tasks and PUT /tasks/{id} are validated against an
// embedded JSON Schema before the request is issued. When the schema cannot
// be compiled the package falls back to minimal checks covering the same
// rules: a non-empty name, a known status, known teams, and an external link
// that is either empty or an absolute URL.
package task

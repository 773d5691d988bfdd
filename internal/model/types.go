package model

import "encoding/json"

// TaskStatus is the backend's lifecycle state for a generation task. The
// backend owns the state machine; this process only observes transitions.
type TaskStatus string

const (
	TaskRunning   TaskStatus = "running"
	TaskSucceeded TaskStatus = "succeeded"
	TaskFailed    TaskStatus = "failed"
)

// Terminal reports whether the task will receive no further updates.
func (s TaskStatus) Terminal() bool {
	return s == TaskSucceeded || s == TaskFailed
}

type User struct {
	UID       int64  `json:"uid"`
	Username  string `json:"username"`
	Point     int64  `json:"point"`
	AvatarURL string `json:"avatar_url"`
	Email     string `json:"email"`
	CreatedAt int64  `json:"create_at"`
}

type Project struct {
	ID        int64  `json:"id"`
	CreatedAt int64  `json:"create_at"`
	Title     string `json:"title"`
}

type Task struct {
	ID             int64      `json:"id"`
	CreatedAt      int64      `json:"create_at"`
	FinishedAt     *int64     `json:"finish_at"`
	Model          string     `json:"model"`
	Prompt         string     `json:"prompt"`
	ReferencePaths string     `json:"reference_image_filepaths"`
	Category       string     `json:"category"`
	ResultFilepath string     `json:"result_filepath"`
	Status         TaskStatus `json:"status"`
	FailureReason  *string    `json:"failure_reason"`
	Error          *string    `json:"error"`
}

// AnyRunning reports whether at least one task in the snapshot is still
// running. The polling loop re-arms on this condition after every fetch.
func AnyRunning(tasks []Task) bool {
	for _, t := range tasks {
		if t.Status == TaskRunning {
			return true
		}
	}
	return false
}

// Envelope is the backend's uniform JSON response wrapper. Code 200 means
// application-level success regardless of the HTTP status that carried it.
type Envelope struct {
	Code int             `json:"code"`
	Data json.RawMessage `json:"data"`
}

// CodeOK is the application-level success code inside the envelope.
const CodeOK = 200

func (e Envelope) OK() bool { return e.Code == CodeOK }

// Decode unmarshals the envelope payload into v.
func (e Envelope) Decode(v any) error {
	if len(e.Data) == 0 {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}

// Message interprets the payload as a human-readable string, the shape the
// backend uses for failure responses and simple acknowledgements.
func (e Envelope) Message() string {
	var msg string
	if err := json.Unmarshal(e.Data, &msg); err == nil {
		return msg
	}
	return string(e.Data)
}

// Image model identifiers accepted by the generation endpoint.
const (
	ModelNanoBanana     = "nano-banana"
	ModelNanoBananaPro  = "nano-banana-pro"
	ModelNanoBananaFast = "nano-banana-fast"
)

// Generation categories.
const (
	CategoryImage = "image"
	CategoryVideo = "video"
)

// GenerateImageRequest is the body of POST /v1/generate/image.
type GenerateImageRequest struct {
	Prompt      string   `json:"prompt"`
	Model       string   `json:"model"`
	AspectRatio string   `json:"aspectRatio"`
	ImageSize   string   `json:"imageSize,omitempty"`
	Filepaths   []string `json:"filepaths"`
	ProjectID   int64    `json:"project_id"`
}

// GenerateVideoRequest is the body of POST /v1/generate/video.
type GenerateVideoRequest struct {
	Prompt        string `json:"prompt"`
	Model         string `json:"model"`
	AspectRatio   string `json:"aspectRatio"`
	Duration      int    `json:"duration,omitempty"`
	Filepath      string `json:"filepath,omitempty"`
	RemixTargetID int64  `json:"remixTargetID,omitempty"`
	Size          string `json:"size,omitempty"`
	ProjectID     int64  `json:"project_id"`
}

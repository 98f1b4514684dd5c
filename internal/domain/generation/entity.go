package generation

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status of a generation job
type Status string

const (
	StatusRendering Status = "rendering"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// FeatureImage outputs get a thumbnail when archived.
const FeatureImage = "image-generation"

// Params are provider-specific request options stored as JSONB.
type Params map[string]any

// Value implements driver.Valuer
func (p Params) Value() (driver.Value, error) {
	if p == nil {
		return "{}", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (p *Params) Scan(src interface{}) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*p = Params{}
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("generation: cannot scan %T into Params", src)
	}
	out := Params{}
	if len(b) > 0 {
		if err := json.Unmarshal(b, &out); err != nil {
			return err
		}
	}
	*p = out
	return nil
}

// Generation is one paid run of a (feature, provider) pair.
type Generation struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	UserID         string     `db:"user_id" json:"-"`
	Feature        string     `db:"feature" json:"feature"`
	Provider       string     `db:"provider" json:"provider"`
	Prompt         string     `db:"prompt" json:"prompt"`
	Params         Params     `db:"params" json:"params,omitempty"`
	CreditsCharged int        `db:"credits_charged" json:"creditsCharged"`
	Status         Status     `db:"status" json:"status"`
	RenderID       *string    `db:"render_id" json:"-"`
	OutputURL      *string    `db:"output_url" json:"outputUrl,omitempty"`
	ThumbnailURL   *string    `db:"thumbnail_url" json:"thumbnailUrl,omitempty"`
	Error          *string    `db:"error" json:"error,omitempty"`
	Refunded       bool       `db:"refunded" json:"refunded"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
	CompletedAt    *time.Time `db:"completed_at" json:"completedAt,omitempty"`
}

// IsRendering reports whether the job still waits on the backend.
func (g *Generation) IsRendering() bool {
	return g.Status == StatusRendering
}

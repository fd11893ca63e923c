package gcs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/poiesic/scriptorium/core"
	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"
)

func TestObjectName(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{"", "7/00001"},
		{"pages", "pages/7/00001"},
		{"pages/", "pages/7/00001"},
		{"scans/2025", "scans/2025/7/00001"},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			s := &BlobStore{prefix: tt.prefix}
			assert.Equal(t, tt.want, s.objectName("7/00001"))
		})
	}
}

func TestClassify(t *testing.T) {
	wrap := func(code int) error {
		return fmt.Errorf("upload: %w", &googleapi.Error{Code: code})
	}

	assert.ErrorIs(t, classify(wrap(http.StatusNotFound)), core.ErrNotFound)
	assert.ErrorIs(t, classify(wrap(http.StatusTooManyRequests)), core.ErrTransient)
	assert.ErrorIs(t, classify(wrap(http.StatusServiceUnavailable)), core.ErrTransient)
	assert.ErrorIs(t, classify(wrap(http.StatusForbidden)), core.ErrPermanent)
	assert.ErrorIs(t, classify(context.DeadlineExceeded), core.ErrTransient)
	assert.ErrorIs(t, classify(errors.New("bad object name")), core.ErrPermanent)
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := New(context.Background(), "", "pages")
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestWithClient_Nil(t *testing.T) {
	_, err := New(context.Background(), "bucket", "", WithClient(nil))
	assert.Error(t, err)
}

package upload

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/esmf-org/branch-summary/pkg/config"
)

func TestResolvePrefix(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		want   string
	}{
		{
			name:   "default prefix",
			prefix: "",
			want:   "reports",
		},
		{
			name:   "custom prefix",
			prefix: "esmf/summaries",
			want:   "esmf/summaries",
		},
		{
			name:   "trailing slash stripped",
			prefix: "esmf/summaries/",
			want:   "esmf/summaries",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &s3Mirror{
				cfg: &config.S3MirrorConfig{Prefix: tt.prefix},
			}
			assert.Equal(t, tt.want, m.resolvePrefix())
		})
	}
}

func TestDetectContentType(t *testing.T) {
	assert.True(t, strings.HasPrefix(detectContentType("develop/report.json"), "application/json"))
	assert.Equal(t, "application/octet-stream", detectContentType("noext"))
}

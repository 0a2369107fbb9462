package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oatdump/pkg/config"
	apperrors "github.com/oatdump/pkg/errors"
)

func TestNewStorage(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *config.StorageConfig
		wantType Storage
		wantErr  string
	}{
		{"cos", &config.StorageConfig{Type: "cos", Bucket: "b", Region: "ap-guangzhou", SecretID: "id", SecretKey: "key"}, &COSStorage{}, ""},
		{"cos mixed case", &config.StorageConfig{Type: "COS", Bucket: "b", Region: "ap-guangzhou", SecretID: "id", SecretKey: "key"}, &COSStorage{}, ""},
		{"local", &config.StorageConfig{Type: "local", LocalPath: t.TempDir()}, &LocalStorage{}, ""},
		{"empty type is local", &config.StorageConfig{LocalPath: t.TempDir()}, &LocalStorage{}, ""},
		{"nil", nil, nil, "storage config is nil"},
		{"unsupported", &config.StorageConfig{Type: "s3"}, nil, `unsupported storage type "s3" (want one of cos, local)`},
		{"local without path", &config.StorageConfig{Type: "local"}, nil, "local storage path is required"},
		{"cos without bucket", &config.StorageConfig{Type: "cos", Region: "r", SecretID: "i", SecretKey: "k"}, nil, "COS bucket is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewStorage(tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Equal(t, apperrors.CodeConfigError, apperrors.GetErrorCode(err))
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, s)
		})
	}
}

func TestTypes(t *testing.T) {
	assert.Equal(t, []string{"cos", "local"}, Types())
}

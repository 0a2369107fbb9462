// Package mock holds testify mocks of the storage and repository interfaces.
package mock

import (
	"bytes"
	"context"
	"io"

	"github.com/stretchr/testify/mock"
)

// MockStorage is a mock implementation of the Storage interface.
type MockStorage struct {
	mock.Mock
}

// Upload mocks the Upload method. Expectations match on the uploaded bytes.
func (m *MockStorage) Upload(ctx context.Context, key string, reader io.Reader) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	args := m.Called(ctx, key, data)
	return args.Error(0)
}

// Download mocks the Download method.
func (m *MockStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

// Exists mocks the Exists method.
func (m *MockStorage) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

// GetURL mocks the GetURL method.
func (m *MockStorage) GetURL(key string) string {
	args := m.Called(key)
	return args.String(0)
}

// ExpectUpload expects an upload of exactly data to key.
func (m *MockStorage) ExpectUpload(key string, data []byte, err error) *mock.Call {
	return m.On("Upload", mock.Anything, key, data).Return(err)
}

// ExpectAnyUpload expects an upload of anything to key.
func (m *MockStorage) ExpectAnyUpload(key string, err error) *mock.Call {
	return m.On("Upload", mock.Anything, key, mock.Anything).Return(err)
}

// ExpectDownload serves data for key.
func (m *MockStorage) ExpectDownload(key string, data []byte) *mock.Call {
	return m.On("Download", mock.Anything, key).Return(io.NopCloser(bytes.NewReader(data)), nil)
}

// ExpectDownloadError fails downloads of key with err.
func (m *MockStorage) ExpectDownloadError(key string, err error) *mock.Call {
	return m.On("Download", mock.Anything, key).Return(nil, err)
}

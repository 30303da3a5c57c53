package api

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/fyerfyer/docx2hf/api/handler"
	"github.com/fyerfyer/docx2hf/api/model"
	"github.com/fyerfyer/docx2hf/internal/dataset"
	"github.com/fyerfyer/docx2hf/internal/document"
	"github.com/fyerfyer/docx2hf/internal/hub"
	"github.com/fyerfyer/docx2hf/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubPublisher 记录发布调用
type stubPublisher struct {
	calls  int
	bundle dataset.Bundle
	repoID string
	token  string
	err    error
}

func (p *stubPublisher) Publish(_ context.Context, bundle dataset.Bundle, repoID, token string) error {
	p.calls++
	p.bundle = bundle
	p.repoID = repoID
	p.token = token
	return p.err
}

// stubVerifier 只接受固定凭证
type stubVerifier struct{}

func (stubVerifier) WhoAmI(_ context.Context, token string) (string, error) {
	switch token {
	case "hf_good":
		return "alice", nil
	case "":
		return "", hub.NewError(hub.ErrCodeUnauthorized, hub.ErrMsgMissingToken)
	default:
		return "", &hub.Error{Code: hub.ErrCodeUnauthorized, StatusCode: 401, Message: hub.ErrMsgInvalidToken}
	}
}

// 测试环境
type datasetTestEnv struct {
	Router    *gin.Engine
	Publisher *stubPublisher
}

func setupDatasetTestEnv(t *testing.T) *datasetTestEnv {
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	publisher := &stubPublisher{}
	converter := services.NewConverterService(publisher, services.WithLogger(logger))

	datasetHandler := handler.NewDatasetHandler(converter, handler.DatasetDefaults{
		RepoName:  "owner/rag",
		TestSplit: 20,
		Token:     "hf_config",
	})
	authHandler := handler.NewAuthHandler(stubVerifier{}, "")

	router := SetupRouter(datasetHandler, authHandler, RouterConfig{Publisher: "hub"})
	return &datasetTestEnv{Router: router, Publisher: publisher}
}

// testFile 一个待上传的表单文件
type testFile struct {
	Name    string
	Type    string
	Content []byte
}

func docxFile(t *testing.T, name, text string) testFile {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>`+
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`+
		`<w:p><w:r><w:t>`+text+`</w:t></w:r></w:p></w:body></w:document>`)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	return testFile{Name: name, Type: string(document.DOCX), Content: buf.Bytes()}
}

// newUploadRequest 构造multipart请求
func newUploadRequest(t *testing.T, path string, files []testFile, fields map[string]string) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, f.Name))
		h.Set("Content-Type", f.Type)
		part, err := writer.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(f.Content)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// decodeResponse 解析通用响应，data解析到out中
func decodeResponse(t *testing.T, w *httptest.ResponseRecorder, out interface{}) model.Response {
	t.Helper()

	var raw struct {
		model.Response
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	if out != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, out))
	}
	return raw.Response
}

func TestCreateDataset(t *testing.T) {
	env := setupDatasetTestEnv(t)

	files := make([]testFile, 0, 10)
	for i := 0; i < 10; i++ {
		files = append(files, docxFile(t, fmt.Sprintf("post%d.docx", i), fmt.Sprintf("Post %d", i)))
	}
	req := newUploadRequest(t, "/api/datasets", files, map[string]string{
		"repo_name":  "alice/posts",
		"test_split": "20",
	})
	req.Header.Set("Authorization", "Bearer hf_header")

	w := httptest.NewRecorder()
	env.Router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var data model.DatasetUploadResponse
	resp := decodeResponse(t, w, &data)
	assert.Equal(t, 0, resp.Code)
	assert.Equal(t, 8, data.Train)
	assert.Equal(t, 2, data.Test)
	assert.True(t, data.Published)
	assert.Equal(t, "alice/posts", data.RepoName)
	assert.NotEmpty(t, w.Header().Get("X-Trace-ID"))

	require.Equal(t, 1, env.Publisher.calls)
	assert.Equal(t, "alice/posts", env.Publisher.repoID)
	assert.Equal(t, "hf_header", env.Publisher.token)
	assert.Equal(t, "Post 0", env.Publisher.bundle.Test[0].Content)
	assert.Equal(t, "Post 5", env.Publisher.bundle.Test[1].Content)
}

func TestCreateDatasetDefaults(t *testing.T) {
	env := setupDatasetTestEnv(t)

	req := newUploadRequest(t, "/api/datasets", []testFile{
		docxFile(t, "a.docx", "A"),
		{Name: "b.pdf", Type: "application/pdf", Content: []byte("%PDF")},
	}, nil)

	w := httptest.NewRecorder()
	env.Router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var data model.DatasetUploadResponse
	decodeResponse(t, w, &data)

	assert.Equal(t, "owner/rag", env.Publisher.repoID)
	assert.Equal(t, "hf_config", env.Publisher.token)
	assert.Equal(t, 1, data.Test)
	require.Len(t, data.Warnings, 1)
	assert.Equal(t, "b.pdf", data.Warnings[0].FileName)
	assert.Equal(t, "File type application/pdf not supported!", data.Warnings[0].Reason)
}

func TestCreateDatasetErrors(t *testing.T) {
	tests := []struct {
		name       string
		files      func(t *testing.T) []testFile
		fields     map[string]string
		publishErr error
		wantStatus int
		wantCalls  int
	}{
		{
			name:       "NoFiles",
			files:      func(t *testing.T) []testFile { return nil },
			fields:     map[string]string{"repo_name": "alice/posts"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "SplitOutOfRange",
			files:      func(t *testing.T) []testFile { return []testFile{docxFile(t, "a.docx", "A")} },
			fields:     map[string]string{"test_split": "60"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "InvalidRepoName",
			files:      func(t *testing.T) []testFile { return []testFile{docxFile(t, "a.docx", "A")} },
			fields:     map[string]string{"repo_name": "no-owner"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "AllFilesRejected",
			files: func(t *testing.T) []testFile {
				return []testFile{{Name: "a.txt", Type: "text/plain", Content: []byte("a")}}
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Unauthorized",
			files:      func(t *testing.T) []testFile { return []testFile{docxFile(t, "a.docx", "A")} },
			publishErr: hub.NewError(hub.ErrCodeUnauthorized, hub.ErrMsgInvalidToken),
			wantStatus: http.StatusUnauthorized,
			wantCalls:  1,
		},
		{
			name:       "PublishFailure",
			files:      func(t *testing.T) []testFile { return []testFile{docxFile(t, "a.docx", "A")} },
			publishErr: &hub.Error{Code: hub.ErrCodeServerError, StatusCode: 500, Message: "boom"},
			wantStatus: http.StatusBadGateway,
			wantCalls:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupDatasetTestEnv(t)
			env.Publisher.err = tt.publishErr

			req := newUploadRequest(t, "/api/datasets", tt.files(t), tt.fields)
			w := httptest.NewRecorder()
			env.Router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decodeResponse(t, w, nil)
			assert.Equal(t, tt.wantStatus, resp.Code)
			assert.NotEmpty(t, resp.TraceID)
			assert.Equal(t, tt.wantCalls, env.Publisher.calls)
		})
	}
}

func TestCreateDatasetEmptyResultWarnings(t *testing.T) {
	env := setupDatasetTestEnv(t)

	req := newUploadRequest(t, "/api/datasets", []testFile{
		{Name: "a.txt", Type: "text/plain", Content: []byte("a")},
		{Name: "b.docx", Type: string(document.DOCX), Content: []byte("not a zip")},
	}, nil)
	w := httptest.NewRecorder()
	env.Router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var data model.DatasetUploadResponse
	resp := decodeResponse(t, w, &data)
	assert.Equal(t, "No valid files were found", resp.Message)
	require.Len(t, data.Warnings, 2)
	assert.Equal(t, 1, data.Warnings[1].Index)
}

func TestPreviewDataset(t *testing.T) {
	env := setupDatasetTestEnv(t)

	req := newUploadRequest(t, "/api/datasets/preview", []testFile{
		docxFile(t, "a.docx", "A"),
		docxFile(t, "b.docx", "B"),
	}, map[string]string{"repo_name": "alice/posts", "test_split": "50"})

	w := httptest.NewRecorder()
	env.Router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var data model.DatasetPreviewResponse
	decodeResponse(t, w, &data)

	assert.Equal(t, 0, env.Publisher.calls)
	assert.False(t, data.Published)
	assert.Equal(t, 1, data.Train)
	assert.Equal(t, 1, data.Test)
	assert.Equal(t, "A", data.Records[dataset.SplitTest][0].Content)
	assert.Equal(t, "B", data.Records[dataset.SplitTrain][0].Content)
	assert.Contains(t, data.Card, "data/test.jsonl")
	assert.Contains(t, data.CardHTML, "<h1")
}

func TestWhoAmI(t *testing.T) {
	env := setupDatasetTestEnv(t)

	t.Run("ValidToken", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/whoami", nil)
		req.Header.Set("Authorization", "Bearer hf_good")
		w := httptest.NewRecorder()
		env.Router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var data model.WhoAmIResponse
		decodeResponse(t, w, &data)
		assert.Equal(t, "alice", data.Name)
	})

	t.Run("MissingToken", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/whoami", nil)
		w := httptest.NewRecorder()
		env.Router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("InvalidToken", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/whoami", nil)
		req.Header.Set("Authorization", "Bearer hf_bad")
		w := httptest.NewRecorder()
		env.Router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestHealth(t *testing.T) {
	env := setupDatasetTestEnv(t)

	w := httptest.NewRecorder()
	env.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var data model.HealthResponse
	decodeResponse(t, w, &data)
	assert.Equal(t, "ok", data.Status)
	assert.Equal(t, "hub", data.Publisher)
}

func TestUnknownRoute(t *testing.T) {
	env := setupDatasetTestEnv(t)

	w := httptest.NewRecorder()
	env.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/documents", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	resp := decodeResponse(t, w, nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Contains(t, resp.Message, "/api/documents")
	assert.NotEmpty(t, resp.TraceID)
}

func TestBearerToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := map[string]string{
		"Bearer hf_abc":  "hf_abc",
		"bearer  hf_abc": "hf_abc",
		"Basic abc":      "",
		"":               "",
	}
	for header, want := range tests {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			c.Request.Header.Set("Authorization", header)
		}
		assert.Equal(t, want, handler.BearerToken(c), header)
	}
}

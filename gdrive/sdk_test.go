package gdrive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/drive/v3"

	"diskcli/core"
)

var (
	findPattern     = regexp.MustCompile(`^name = '([^']*)' and '([^']*)' in parents`)
	childrenPattern = regexp.MustCompile(`^'([^']*)' in parents`)
)

// driveServer answers the Drive v3 REST calls the SDK makes, two files per
// listing page so paging is exercised.
type driveServer struct {
	mu        sync.Mutex
	srv       *httptest.Server
	files     map[string]*drive.File
	revisions map[string][]*drive.Revision
	content   map[string][]byte
	nextID    int
	requests  []string
	pageCalls int
	keepFlags []string
}

func newDriveServer(t *testing.T) *driveServer {
	s := &driveServer{
		files:     map[string]*drive.File{},
		revisions: map[string][]*drive.Revision{},
		content:   map[string][]byte{},
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *driveServer) config(base string) core.BackendConfig {
	return core.BackendConfig{
		Backend:        core.Google,
		AccessToken:    "tok",
		BaseURL:        base,
		FolderMimeType: core.DefaultFolderMimeType,
		Timeout:        5 * time.Second,
	}
}

func writeDriveJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDriveError(w http.ResponseWriter, status int, message string) {
	writeDriveJSON(w, status, map[string]any{
		"error": map[string]any{"code": status, "message": message},
	})
}

func readMultipart(r *http.Request) (*drive.File, []byte, error) {
	_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, nil, err
	}
	mr := multipart.NewReader(r.Body, params["boundary"])

	part, err := mr.NextPart()
	if err != nil {
		return nil, nil, err
	}
	var meta drive.File
	if err := json.NewDecoder(part).Decode(&meta); err != nil {
		return nil, nil, err
	}

	part, err = mr.NextPart()
	if err != nil {
		return nil, nil, err
	}
	data, err := io.ReadAll(part)
	return &meta, data, err
}

func (s *driveServer) add(meta *drive.File) *drive.File {
	s.nextID++
	f := &drive.File{
		Id:           fmt.Sprintf("id%d", s.nextID),
		Name:         meta.Name,
		MimeType:     meta.MimeType,
		Parents:      meta.Parents,
		ModifiedTime: time.Date(2024, 5, 1, 10, s.nextID, 0, 0, time.UTC).Format(time.RFC3339),
	}
	if f.MimeType == "" {
		f.MimeType = "text/plain"
	}
	s.files[f.Id] = f
	return f
}

func (s *driveServer) store(f *drive.File, data []byte, keep bool) {
	revs := s.revisions[f.Id]
	rev := &drive.Revision{
		Id:           fmt.Sprintf("r%d", len(revs)+1),
		ModifiedTime: time.Date(2024, 5, 2, 10, len(revs), 0, 0, time.UTC).Format(time.RFC3339),
		Size:         int64(len(data)),
		KeepForever:  keep,
	}
	s.revisions[f.Id] = append(revs, rev)
	s.content[f.Id+"/"+rev.Id] = data
	s.content[f.Id] = data
	f.Size = int64(len(data))
}

func (s *driveServer) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")

	var match func(f *drive.File) bool
	if m := findPattern.FindStringSubmatch(q); m != nil {
		match = func(f *drive.File) bool { return f.Name == m[1] && f.Parents[0] == m[2] }
	} else if m := childrenPattern.FindStringSubmatch(q); m != nil {
		match = func(f *drive.File) bool { return f.Parents[0] == m[1] }
	} else {
		writeDriveError(w, http.StatusBadRequest, "Invalid Value")
		return
	}

	var found []*drive.File
	for _, f := range s.files {
		if match(f) {
			found = append(found, f)
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Name < found[j].Name })

	start := 0
	if token := r.URL.Query().Get("pageToken"); token != "" {
		s.pageCalls++
		start, _ = strconv.Atoi(token)
	}
	end := start + 2
	result := &drive.FileList{Files: []*drive.File{}}
	if end < len(found) {
		result.NextPageToken = strconv.Itoa(end)
	} else {
		end = len(found)
	}
	if start < end {
		result.Files = found[start:end]
	}
	writeDriveJSON(w, http.StatusOK, result)
}

func (s *driveServer) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, r.Method+" "+r.URL.Path)
	if r.Header.Get("Authorization") != "Bearer tok" {
		writeDriveError(w, http.StatusUnauthorized, "Invalid Credentials")
		return
	}

	media := r.URL.Query().Get("alt") == "media"
	rest := strings.TrimPrefix(r.URL.Path, "/drive/v3/")
	parts := strings.Split(rest, "/")

	switch {
	case r.URL.Path == "/drive/v3/about" && r.Method == http.MethodGet:
		writeDriveJSON(w, http.StatusOK, &drive.About{
			User:         &drive.User{DisplayName: "Test User", EmailAddress: "tester@example.com"},
			StorageQuota: &drive.AboutStorageQuota{Limit: 1000, Usage: 10},
		})

	case r.URL.Path == "/drive/v3/files" && r.Method == http.MethodGet:
		s.list(w, r)

	case r.URL.Path == "/drive/v3/files" && r.Method == http.MethodPost:
		var meta drive.File
		if err := json.NewDecoder(r.Body).Decode(&meta); err != nil {
			writeDriveError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeDriveJSON(w, http.StatusOK, s.add(&meta))

	case r.URL.Path == "/upload/drive/v3/files" && r.Method == http.MethodPost:
		meta, data, err := readMultipart(r)
		if err != nil {
			writeDriveError(w, http.StatusBadRequest, err.Error())
			return
		}
		f := s.add(meta)
		s.store(f, data, false)
		writeDriveJSON(w, http.StatusOK, f)

	case strings.HasPrefix(r.URL.Path, "/upload/drive/v3/files/") && r.Method == http.MethodPatch:
		f := s.files[strings.TrimPrefix(r.URL.Path, "/upload/drive/v3/files/")]
		if f == nil {
			writeDriveError(w, http.StatusNotFound, "File not found")
			return
		}
		_, data, err := readMultipart(r)
		if err != nil {
			writeDriveError(w, http.StatusBadRequest, err.Error())
			return
		}
		keep := r.URL.Query().Get("keepRevisionForever")
		s.keepFlags = append(s.keepFlags, keep)
		s.store(f, data, keep == "true")
		writeDriveJSON(w, http.StatusOK, f)

	case len(parts) == 2 && parts[0] == "files" && media:
		data, ok := s.content[parts[1]]
		if !ok {
			writeDriveError(w, http.StatusNotFound, "File not found: "+parts[1])
			return
		}
		w.Write(data)

	case len(parts) == 3 && parts[0] == "files" && parts[2] == "revisions":
		writeDriveJSON(w, http.StatusOK, &drive.RevisionList{Revisions: s.revisions[parts[1]]})

	case len(parts) == 4 && parts[0] == "files" && parts[2] == "revisions" && media:
		data, ok := s.content[parts[1]+"/"+parts[3]]
		if !ok {
			writeDriveError(w, http.StatusNotFound, "Revision not found: "+parts[3])
			return
		}
		w.Write(data)

	default:
		writeDriveError(w, http.StatusNotFound, "unexpected "+r.Method+" "+r.URL.Path)
	}
}

func TestSDKAboutWithoutTrailingSlash(t *testing.T) {
	s := newDriveServer(t)
	d, err := New(context.Background(), s.config(s.srv.URL+"/drive/v3"), nil)
	require.NoError(t, err)

	info, err := d.About(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Test User <tester@example.com>", info.User)
	assert.Equal(t, int64(1000), info.TotalSpace)
	assert.Equal(t, int64(10), info.UsedSpace)
	assert.Equal(t, []string{"GET /drive/v3/about"}, s.requests)
}

func TestSDKRejectedToken(t *testing.T) {
	s := newDriveServer(t)
	cfg := s.config(s.srv.URL + "/drive/v3/")
	cfg.AccessToken = "expired"
	d, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)

	_, err = d.About(context.Background())
	require.True(t, core.IsStatus(err, http.StatusUnauthorized), "got %v", err)
	assert.ErrorContains(t, err, "Invalid Credentials")
}

func TestSDKTransferAndVersions(t *testing.T) {
	s := newDriveServer(t)
	d, err := New(context.Background(), s.config(s.srv.URL+"/drive/v3/"), nil)
	require.NoError(t, err)
	ctx := context.Background()

	src := t.TempDir()
	writeLocal(t, src, map[string]string{"a.txt": "one", "b.txt": "two", "c.txt": "three"})

	report, err := d.Upload(ctx, core.UploadRequest{LocalPath: src, RemotePath: "/docs", IsFolder: true})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"/docs/a.txt", "/docs/b.txt", "/docs/c.txt"}, report.Files)

	entries, err := d.List(ctx, "/docs")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "c.txt", entries[2].Name)
	require.NotNil(t, entries[2].Size)
	assert.Equal(t, int64(5), *entries[2].Size)
	assert.Positive(t, s.pageCalls)

	out := filepath.Join(t.TempDir(), "b.txt")
	_, err = d.Download(ctx, core.DownloadRequest{RemotePath: "/docs/b.txt", LocalPath: out})
	require.NoError(t, err)
	assert.Equal(t, "two", readLocal(t, out))

	next := filepath.Join(t.TempDir(), "b.txt")
	writeLocal(t, filepath.Dir(next), map[string]string{"b.txt": "two, revised"})
	_, err = d.Upload(ctx, core.UploadRequest{LocalPath: next, RemotePath: "/docs/b.txt", AsNewVersion: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"true"}, s.keepFlags)

	versions, err := d.ListVersions(ctx, "/docs/b.txt")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "r1", versions[0].ID)
	assert.True(t, versions[1].KeepForever)

	old := filepath.Join(t.TempDir(), "old.txt")
	require.NoError(t, d.DownloadVersion(ctx, "/docs/b.txt", "r1", old))
	assert.Equal(t, "two", readLocal(t, old))

	missing := filepath.Join(t.TempDir(), "missing.txt")
	err = d.DownloadVersion(ctx, "/docs/b.txt", "r9", missing)
	require.True(t, core.IsNotFound(err), "got %v", err)
	assert.ErrorContains(t, err, `version "r9" of /docs/b.txt not found`)
	assert.NoFileExists(t, missing)
}

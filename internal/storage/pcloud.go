package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/mbeckett/TuneVault/pkg/logger"
)

var log = logger.Get("Storage")

const (
	listFolderTemplate    = "%s/listfolder?access_token=%s&folderid=0"
	createFolderTemplate  = "%s/createfolder?access_token=%s&folderid=0&name=%s"
	uploadFileTemplate    = "%s/uploadfile?access_token=%s&folderid=%s&filename=%s&nopartial=1"
	getPublicLinkTemplate = "%s/getfilepublink?access_token=%s&fileid=%s"
	deleteFileTemplate    = "%s/deletefile?access_token=%s&fileid=%s"
)

type (
	Config struct {
		// Host is the base URL of the provider API, e.g. https://api.pcloud.com
		Host        string
		AccessToken string
	}

	folderEntry struct {
		Name     string      `json:"name"`
		IsFolder bool        `json:"isfolder"`
		FolderID json.Number `json:"folderid"`
	}

	listFolderResponse struct {
		Result   int    `json:"result"`
		Error    string `json:"error"`
		Metadata struct {
			Contents []folderEntry `json:"contents"`
		} `json:"metadata"`
	}

	createFolderResponse struct {
		Result   int    `json:"result"`
		Error    string `json:"error"`
		Metadata struct {
			FolderID json.Number `json:"folderid"`
		} `json:"metadata"`
	}

	uploadFileResponse struct {
		Result   int    `json:"result"`
		Error    string `json:"error"`
		Metadata []struct {
			FileID json.Number `json:"fileid"`
		} `json:"metadata"`
	}

	publicLinkResponse struct {
		Result int    `json:"result"`
		Error  string `json:"error"`
		Link   string `json:"link"`
	}

	deleteFileResponse struct {
		Result int    `json:"result"`
		Error  string `json:"error"`
	}

	// client is a thin typed wrapper around the pCloud-style JSON API used
	// to hold the uploaded artifacts. Note the providers folder API is NOT
	// atomic: EnsureFolder is lookup-then-create and two processes racing
	// on the same name can still create duplicates provider-side. Callers
	// must serialize destination resolution themselves.
	client struct {
		config Config
	}
)

func NewClient(config Config) *client {
	return &client{config}
}

// ListFolders returns a mapping of folder name to folder ID for every
// folder in the provider's root directory.
func (c *client) ListFolders(ctx context.Context) (map[string]string, error) {
	path := fmt.Sprintf(listFolderTemplate, c.config.Host, c.config.AccessToken)
	var response listFolderResponse
	if err := httpGetJsonResponse(ctx, path, &response); err != nil {
		return nil, err
	}
	if response.Result != 0 {
		return nil, &ProviderError{Code: response.Result, Message: response.Error}
	}

	folders := make(map[string]string, len(response.Metadata.Contents))
	for _, entry := range response.Metadata.Contents {
		if entry.IsFolder {
			folders[entry.Name] = entry.FolderID.String()
		}
	}

	return folders, nil
}

// CreateFolder creates a folder with the given name in the root directory
// and returns its ID.
func (c *client) CreateFolder(ctx context.Context, name string) (string, error) {
	path := fmt.Sprintf(createFolderTemplate, c.config.Host, c.config.AccessToken, url.QueryEscape(name))
	var response createFolderResponse
	if err := httpGetJsonResponse(ctx, path, &response); err != nil {
		return "", err
	}
	if response.Result != 0 {
		return "", &ProviderError{Code: response.Result, Message: response.Error}
	}

	return response.Metadata.FolderID.String(), nil
}

// EnsureFolder resolves the ID of the named root folder, creating the
// folder if no folder with that name exists yet. Calling this twice for
// the same name returns the same ID without creating a second folder.
func (c *client) EnsureFolder(ctx context.Context, name string) (string, error) {
	folders, err := c.ListFolders(ctx)
	if err != nil {
		return "", err
	}

	if id, ok := folders[name]; ok {
		return id, nil
	}

	log.Debugf("Folder %s missing from provider root, creating...\n", name)
	return c.CreateFolder(ctx, name)
}

// UploadFile streams the content provided as a multipart upload in to the
// folder specified, returning the remote file ID assigned by the provider.
func (c *client) UploadFile(ctx context.Context, folderID string, filename string, content io.Reader) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to construct multipart upload: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return "", fmt.Errorf("failed to buffer upload content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	path := fmt.Sprintf(uploadFileTemplate, c.config.Host, c.config.AccessToken, url.QueryEscape(folderID), url.QueryEscape(filename))
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, path, body)
	if err != nil {
		return "", err
	}
	request.Header.Set("Content-Type", writer.FormDataContentType())

	httpResponse, err := http.DefaultClient.Do(request)
	if err != nil {
		return "", err
	}
	defer httpResponse.Body.Close()

	if httpResponse.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upload of %s failed: provider responded with status %s", filename, httpResponse.Status)
	}

	var response uploadFileResponse
	if err := json.NewDecoder(httpResponse.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}
	if response.Result != 0 {
		return "", &ProviderError{Code: response.Result, Message: response.Error}
	}
	if len(response.Metadata) == 0 {
		return "", &ProviderError{Code: -1, Message: "upload response contained no file metadata"}
	}

	return response.Metadata[0].FileID.String(), nil
}

// CreatePublicLink requests a shareable public URL for the remote file ID provided.
func (c *client) CreatePublicLink(ctx context.Context, fileID string) (string, error) {
	path := fmt.Sprintf(getPublicLinkTemplate, c.config.Host, c.config.AccessToken, url.QueryEscape(fileID))
	var response publicLinkResponse
	if err := httpGetJsonResponse(ctx, path, &response); err != nil {
		return "", err
	}
	if response.Result != 0 {
		return "", &ProviderError{Code: response.Result, Message: response.Error}
	}

	return response.Link, nil
}

// DeleteFile removes the remote file. Used only for best-effort compensation
// when the second artifact upload of a pipeline fails.
func (c *client) DeleteFile(ctx context.Context, fileID string) error {
	path := fmt.Sprintf(deleteFileTemplate, c.config.Host, c.config.AccessToken, url.QueryEscape(fileID))
	var response deleteFileResponse
	if err := httpGetJsonResponse(ctx, path, &response); err != nil {
		return err
	}
	if response.Result != 0 {
		return &ProviderError{Code: response.Result, Message: response.Error}
	}

	return nil
}

func httpGetJsonResponse(ctx context.Context, path string, target any) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}

	response, err := http.DefaultClient.Do(request)
	if err != nil {
		return fmt.Errorf("request to storage provider failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("storage provider responded with status %s", response.Status)
	}

	if err := json.NewDecoder(response.Body).Decode(target); err != nil {
		return fmt.Errorf("failed to decode storage provider response: %w", err)
	}

	return nil
}

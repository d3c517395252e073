package connector

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/dailyquill/dailyquill/internal/models"
)

const youtubeChunkSize = 8 * 1024 * 1024

// Youtube uploads videos through the Data API's resumable protocol.
// The client library drives the chunked transfer, so an interrupted
// upload resumes from the last acknowledged chunk instead of starting
// over.
type Youtube struct {
	tokens TokenSource

	// newService is swapped out in tests.
	newService func(ctx context.Context, accessToken string) (*youtube.Service, error)
}

func NewYoutube(tokens TokenSource) *Youtube {
	return &Youtube{
		tokens:     tokens,
		newService: defaultYoutubeService,
	}
}

func defaultYoutubeService(ctx context.Context, accessToken string) (*youtube.Service, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
	return youtube.NewService(ctx, option.WithHTTPClient(client))
}

func (y *Youtube) Platform() models.PlatformID { return models.PlatformYoutube }

func (y *Youtube) IsConfigured(ctx context.Context) bool {
	_, err := y.tokens.Token(ctx, models.PlatformYoutube)
	return err == nil
}

func (y *Youtube) PostText(ctx context.Context, caption string) PostResult {
	return Failed(ErrUnsupportedOperation)
}

func (y *Youtube) Post(ctx context.Context, imagePath, caption, link string) PostResult {
	return Failed(ErrUnsupportedOperation)
}

func (y *Youtube) PostVideo(ctx context.Context, videoPath, caption string) PostResult {
	tok, err := y.tokens.Token(ctx, models.PlatformYoutube)
	if err != nil {
		return Failed(ErrNotConfigured)
	}

	service, err := y.newService(ctx, tok.AccessToken)
	if err != nil {
		slog.Info(err.Error())
		return Failed(err)
	}

	file, err := os.Open(videoPath)
	if err != nil {
		return Failed(err)
	}
	defer file.Close()

	title := caption
	if idx := strings.IndexByte(title, '\n'); idx > 0 {
		title = title[:idx]
	}
	if len(title) > 100 {
		title = title[:97] + "..."
	}

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       title,
			Description: caption,
			CategoryId:  "22",
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           "public",
			SelfDeclaredMadeForKids: false,
			// A false zero value is dropped by omitempty unless forced.
			ForceSendFields: []string{"SelfDeclaredMadeForKids"},
		},
	}

	call := service.Videos.Insert([]string{"snippet", "status"}, video)
	response, err := call.Media(file, googleapi.ChunkSize(youtubeChunkSize)).Context(ctx).Do()
	if err != nil {
		slog.Info(err.Error())
		if gerr, ok := err.(*googleapi.Error); ok {
			return Failed(&UploadError{Stage: "upload", Err: remoteFailure(gerr.Code, nil, gerr.Message)})
		}
		return Failed(&UploadError{Stage: "upload", Err: err})
	}

	return Succeeded(response.Id, fmt.Sprintf("https://youtu.be/%s", response.Id))
}

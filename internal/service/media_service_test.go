package service

import (
	"context"
	"strings"
	"testing"

	"regulie/therapy-app/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSession(t *testing.T, e *testEnv, tier domain.Tier, shared bool) (*domain.User, *domain.Client, *domain.Session) {
	t.Helper()
	ctx := context.Background()
	th := e.therapist(tier)
	client, err := e.clientSvc.Create(ctx, th.ID, ClientInput{FirstName: "Sam"})
	require.NoError(t, err)
	session, err := e.sessionSvc.Create(ctx, th.ID, SessionInput{ClientID: client.ID, Date: e.clock.Now(), SharedWithParents: shared})
	require.NoError(t, err)
	return th, client, session
}

func TestAllowedContentType(t *testing.T) {
	for ct, want := range map[string]bool{
		"image/png":                true,
		"video/mp4":                true,
		"audio/mpeg; codecs=mp3":   true,
		"application/pdf":          true,
		"APPLICATION/PDF":          true,
		"application/zip":          false,
		"text/html":                false,
		"image/":                   false,
		"application/x-msdownload": false,
	} {
		assert.Equal(t, want, AllowedContentType(ct), ct)
	}
}

func TestMediaService_UploadFlow(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	th, _, session := setupSession(t, e, domain.TierFree, false)

	ticket, err := e.mediaSvc.RequestUpload(ctx, th.ID, UploadRequest{SessionID: session.ID, FileName: "Clip.MP4", ContentType: "video/mp4", Size: 4 << 20})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ticket.ObjectKey, sessionKeyPrefix(th.ID, session.ID)))
	assert.True(t, strings.HasSuffix(ticket.ObjectKey, ".mp4"))
	assert.Contains(t, ticket.UploadURL, ticket.ObjectKey)

	_, err = e.mediaSvc.Confirm(ctx, th.ID, ConfirmUpload{SessionID: session.ID, ObjectKey: ticket.ObjectKey})
	assert.ErrorIs(t, err, ErrUploadNotFound)

	e.storage.put(ticket.ObjectKey, 4<<20, "video/mp4")
	media, err := e.mediaSvc.Confirm(ctx, th.ID, ConfirmUpload{SessionID: session.ID, ObjectKey: ticket.ObjectKey, FileName: "Clip.MP4"})
	require.NoError(t, err)
	assert.Equal(t, int64(4<<20), media.Size)
	assert.Equal(t, session.ClientID, media.ClientID)

	stored, err := e.sessions.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Contains(t, stored.MediaIDs, media.ID)

	list, err := e.mediaSvc.ListForSession(ctx, th.ID, session.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, e.mediaSvc.Delete(ctx, th.ID, media.ID))
	stored, err = e.sessions.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.NotContains(t, stored.MediaIDs, media.ID)
	assert.Contains(t, e.storage.deleted, ticket.ObjectKey)
}

func TestMediaService_RejectsBadUploads(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	th, _, session := setupSession(t, e, domain.TierFree, false)

	_, err := e.mediaSvc.RequestUpload(ctx, th.ID, UploadRequest{SessionID: session.ID, FileName: "x.exe", ContentType: "application/x-msdownload", Size: 10})
	assert.ErrorIs(t, err, ErrUnsupportedContentType)

	_, err = e.mediaSvc.RequestUpload(ctx, th.ID, UploadRequest{SessionID: session.ID, FileName: "big.mp4", ContentType: "video/mp4", Size: 11 << 20})
	assert.ErrorIs(t, err, ErrFileTooLarge)

	other := e.therapist(domain.TierFree)
	_, err = e.mediaSvc.RequestUpload(ctx, other.ID, UploadRequest{SessionID: session.ID, FileName: "a.png", ContentType: "image/png", Size: 10})
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// Keys outside the session prefix are refused, including traversal into a subdirectory.
	for _, key := range []string{
		"therapists/other/sessions/x/file.png",
		sessionKeyPrefix(th.ID, session.ID) + "nested/file.png",
	} {
		_, err = e.mediaSvc.Confirm(ctx, th.ID, ConfirmUpload{SessionID: session.ID, ObjectKey: key})
		assert.ErrorIs(t, err, ErrInvalidObjectKey, key)
	}

	// The stored object is authoritative; an oversized upload is removed.
	key := sessionKeyPrefix(th.ID, session.ID) + "huge.mp4"
	e.storage.put(key, 20<<20, "video/mp4")
	_, err = e.mediaSvc.Confirm(ctx, th.ID, ConfirmUpload{SessionID: session.ID, ObjectKey: key})
	assert.ErrorIs(t, err, ErrFileTooLarge)
	assert.Contains(t, e.storage.deleted, key)
}

func TestMediaService_DownloadAccess(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	th, client, session := setupSession(t, e, domain.TierFree, false)
	parent := e.parent()
	require.NoError(t, e.clients.AddParent(ctx, client.ID, parent.ID))

	key := sessionKeyPrefix(th.ID, session.ID) + "photo.jpg"
	e.storage.put(key, 2048, "image/jpeg")
	media, err := e.mediaSvc.Confirm(ctx, th.ID, ConfirmUpload{SessionID: session.ID, ObjectKey: key})
	require.NoError(t, err)

	url, err := e.mediaSvc.DownloadURL(ctx, Viewer{UserID: th.ID, Role: domain.RoleTherapist}, media.ID)
	require.NoError(t, err)
	assert.Contains(t, url, key)

	// Linked parent, but the session is not shared yet.
	_, err = e.mediaSvc.DownloadURL(ctx, Viewer{UserID: parent.ID, Role: domain.RoleParent}, media.ID)
	assert.ErrorIs(t, err, ErrMediaNotFound)

	_, err = e.sessionSvc.Update(ctx, th.ID, session.ID, SessionInput{Date: session.Date, SharedWithParents: true})
	require.NoError(t, err)
	_, err = e.mediaSvc.DownloadURL(ctx, Viewer{UserID: parent.ID, Role: domain.RoleParent}, media.ID)
	assert.NoError(t, err)

	stranger := e.parent()
	_, err = e.mediaSvc.DownloadURL(ctx, Viewer{UserID: stranger.ID, Role: domain.RoleParent}, media.ID)
	assert.ErrorIs(t, err, ErrMediaNotFound)

	otherTherapist := e.therapist(domain.TierFree)
	_, err = e.mediaSvc.DownloadURL(ctx, Viewer{UserID: otherTherapist.ID, Role: domain.RoleTherapist}, media.ID)
	assert.ErrorIs(t, err, ErrMediaNotFound)
}

func TestMediaService_SessionDeleteRemovesMedia(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	th, _, session := setupSession(t, e, domain.TierPremium, false)

	key := sessionKeyPrefix(th.ID, session.ID) + "note.pdf"
	e.storage.put(key, 300<<20, "application/pdf")
	_, err := e.mediaSvc.Confirm(ctx, th.ID, ConfirmUpload{SessionID: session.ID, ObjectKey: key})
	require.NoError(t, err)

	require.NoError(t, e.sessionSvc.Delete(ctx, th.ID, session.ID))
	assert.Empty(t, e.mediaRepo.media)
	assert.Contains(t, e.storage.deleted, key)
}

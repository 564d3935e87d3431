package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNoPartner is returned when an operation needs a selected conversation.
	ErrNoPartner = errors.New("no conversation partner selected")
	// ErrEmptyMessage rejects a send with neither content nor image.
	ErrEmptyMessage = errors.New("message needs text or an image")
	// ErrUploadInFlight rejects a second upload while one is running.
	ErrUploadInFlight = errors.New("an upload is already in progress")
	// ErrFileTooLarge rejects an attachment over the size cap.
	ErrFileTooLarge = errors.New("file exceeds the attachment size limit")
	// ErrFileType rejects an attachment outside the image allow-list.
	ErrFileType = errors.New("only JPEG, PNG and GIF images can be attached")
)

// FetchError is a failed history load. It surfaces as a full-conversation
// error state.
type FetchError struct {
	Partner string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("loading conversation with %s failed: %v", e.Partner, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// SendError is a failed message send. It surfaces next to the composer,
// not as a conversation-level error.
type SendError struct {
	Partner string
	Err     error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("sending to %s failed: %v", e.Partner, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// UploadError is a failed attachment upload. The dependent send is never
// attempted.
type UploadError struct {
	Filename string
	Err      error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("uploading %s failed: %v", e.Filename, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

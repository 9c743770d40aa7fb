package resolve

import "fmt"

// Kind classifies why resolution failed.
type Kind string

const (
	KindNoContent  Kind = "no_content"
	KindTooLong    Kind = "too_long"
	KindLocator    Kind = "locator"
	KindDownload   Kind = "download"
	KindRead       Kind = "read"
	KindExtraction Kind = "extraction"
)

// Error is a user-facing resolution failure. Its message is safe to return
// to the caller verbatim.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Err }

func errNoContent() *Error {
	return &Error{Kind: KindNoContent, Msg: "No content provided. Please paste text or select an uploaded file."}
}

func errTooLong() *Error {
	return &Error{Kind: KindTooLong, Msg: "Content is too long. Please limit to 50 000 characters."}
}

func errLocator() *Error {
	return &Error{Kind: KindLocator, Msg: "Could not determine storage path from the provided file URL."}
}

func errDownload(err error) *Error {
	return &Error{Kind: KindDownload, Msg: fmt.Sprintf("Failed to download file from storage: %v", err), Err: err}
}

func errRead(err error) *Error {
	return &Error{Kind: KindRead, Msg: "Failed to read the downloaded file into memory.", Err: err}
}

func errFileTooLarge() *Error {
	return &Error{Kind: KindRead, Msg: "File is too large. Maximum size is 10 MB."}
}

func errExtraction(format fmt.Stringer, err error) *Error {
	return &Error{Kind: KindExtraction, Msg: fmt.Sprintf("%s text extraction failed: %v", format, err), Err: err}
}

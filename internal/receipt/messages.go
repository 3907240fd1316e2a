package receipt

import "errors"

// UserMessage maps a recognition error to the text shown next to the form.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoImage):
		return "Take or choose a receipt photo first."
	case errors.Is(err, ErrBusy):
		return "Recognition is already running, please wait."
	case errors.Is(err, ErrUnauthorized):
		return "The recognition service rejected the access key. Please select your API key again."
	case errors.Is(err, ErrMalformedResponse):
		return "Could not read the recognition result. Enter the details manually or try again."
	case errors.Is(err, ErrImageTooLarge):
		return "The photo is too large."
	case errors.Is(err, ErrNotAnImage), errors.Is(err, ErrEmptyImage):
		return "Please choose an image file."
	default:
		return "Recognition failed, the photo may not be clear enough. Enter the details manually or try again."
	}
}

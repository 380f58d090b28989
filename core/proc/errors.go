package proc

import (
	"io"
)

// ErrorMessage is the only error text users ever see.
const ErrorMessage = "An error has occurred\n"

// WriteError writes ErrorMessage to w. It holds no state so it is safe to call
// on behalf of any process.
func WriteError(w io.Writer) {
	if w == nil {
		return
	}
	io.WriteString(w, ErrorMessage)
}

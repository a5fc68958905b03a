package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

type Confirmer struct {
	In            io.Reader
	Out           io.Writer
	IsInteractive func() bool
}

func DefaultConfirmer() Confirmer {
	return Confirmer{
		In:  os.Stdin,
		Out: os.Stderr,
		IsInteractive: func() bool {
			info, err := os.Stdin.Stat()
			if err != nil {
				return false
			}
			return (info.Mode() & os.ModeCharDevice) != 0
		},
	}
}

// ConfirmUpload asks before count units are pushed to destination. Without
// a terminal there is nobody to ask and the upload proceeds.
func (c Confirmer) ConfirmUpload(destination string, count int, force bool) (bool, error) {
	if force || c.IsInteractive == nil || !c.IsInteractive() {
		return true, nil
	}
	if c.Out != nil {
		fmt.Fprintf(c.Out, "Upload %d translation file(s) to %s? (y/n): ", count, destination)
	}
	reader := bufio.NewReader(c.In)
	response, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes", nil
}

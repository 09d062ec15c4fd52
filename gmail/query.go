package gmail

import (
	"fmt"
	"strings"

	"github.com/bassamadnan/mailcmd/mailbox"
)

// BuildQuery renders q in Gmail search syntax:
//
//	is:unread from:"alerts@example.com" subject:"Run Backup"
func BuildQuery(q mailbox.Query) string {
	return fmt.Sprintf(`is:unread from:"%s" subject:"%s"`, quoteSafe(q.From), quoteSafe(q.Subject))
}

// Gmail search has no escape for a double quote inside a quoted term.
func quoteSafe(s string) string {
	return strings.ReplaceAll(s, `"`, "")
}

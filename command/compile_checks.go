package command

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-orgcreator/core"
)

var (
	_ gocmd.Commander[HandleClaimMessage] = (*HandleClaimCommand)(nil)
	_ gocmd.Message                       = HandleClaimMessage{}
	_ ClaimService                        = (*core.Service)(nil)
)

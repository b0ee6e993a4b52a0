package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[ProcessProductChangeMessage] = (*ProcessProductChangeCommand)(nil)
	_ gocmd.Commander[ProcessOrderPushMessage]     = (*ProcessOrderPushCommand)(nil)
	_ gocmd.Commander[SyncProductsMessage]         = (*SyncProductsCommand)(nil)
)

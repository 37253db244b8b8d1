package printer

import (
	"context"
	"os"

	"github.com/bascanada/logai-mcp/pkg/log/client"
)

type PrintPrinter struct{}

func (pp PrintPrinter) Display(ctx context.Context, result client.LogSearchResult) (bool, error) {
	return WrapIoWriter(ctx, result, os.Stdout, func() {})
}

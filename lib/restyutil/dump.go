package restyutil

import (
	"fmt"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

type Output interface {
	Write(id string, contents string)
}

// DumpMessages writes every request/response pair made by `client` to
// `output`. Streamed responses are dumped without their body.
func DumpMessages(client *resty.Client, output Output) {
	if output == nil {
		return
	}

	var idcounter uint64
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		if res.Request == nil || res.Request.RawRequest == nil || res.RawResponse == nil {
			return nil
		}
		id := atomic.AddUint64(&idcounter, 1)
		output.Write(
			fmt.Sprintf("%04d_%s.txt", id, res.Request.Method),
			formatHttpMessage(res),
		)
		return nil
	})
}

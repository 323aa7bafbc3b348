package common

import (
	"fmt"
	"strings"
)

func RedisKeyTransferHistory(chain, address string) string {
	return fmt.Sprintf("transferhistory:%s:%s", chain, strings.ToLower(address))
}

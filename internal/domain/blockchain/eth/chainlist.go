package eth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"

	"golang.org/x/net/html"
)

const chainlistURL = "https://chainlist.org/chain/%s"

// fetchChainlistRpcs reads the public https rpcs of a chain from chainlist.
func fetchChainlistRpcs(ctx context.Context, chainID *big.Int) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(chainlistURL, chainID), nil)
	if err != nil {
		return nil, err
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chainlist returned status %d", res.StatusCode)
	}

	page, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	return parseChainlistRpcs(string(page))
}

type chainlistPage struct {
	Props struct {
		PageProps struct {
			Chain struct {
				RPC []struct {
					URL string `json:"url"`
				} `json:"rpc"`
			} `json:"chain"`
		} `json:"pageProps"`
	} `json:"props"`
}

// parseChainlistRpcs extracts rpc urls from the json blob embedded in the page.
func parseChainlistRpcs(page string) ([]string, error) {
	var blob string
	tokenizer := html.NewTokenizer(strings.NewReader(page))
	for {
		kind := tokenizer.Next()
		if kind == html.ErrorToken {
			break
		}

		if kind == html.TextToken {
			if text := tokenizer.Token().Data; json.Valid([]byte(text)) {
				blob = text
			}
		}
	}

	var data chainlistPage
	if err := json.Unmarshal([]byte(blob), &data); err != nil {
		return nil, err
	}

	var urls []string
	for _, rpc := range data.Props.PageProps.Chain.RPC {
		if strings.HasPrefix(rpc.URL, "https://") {
			urls = append(urls, rpc.URL)
		}
	}

	return urls, nil
}

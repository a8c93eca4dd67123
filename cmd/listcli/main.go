package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/DaoCloud/listcache/filter"
	"github.com/DaoCloud/listcache/log"
	"github.com/DaoCloud/listcache/order"
	"github.com/DaoCloud/listcache/page"
	"github.com/DaoCloud/listcache/pkg/client"
	"github.com/DaoCloud/listcache/view"
)

type row = map[string]interface{}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	var (
		serverURL  string
		token      string
		collection string
		idField    string
		page_      int
		pageSize   int
		sort       string
		search     string
		all        bool
		encode     bool
		debug      bool
		timeout    time.Duration
	)
	flag.StringVar(&serverURL, "server", "http://127.0.0.1:80", "list server address")
	flag.StringVar(&token, "token", "", "bearer token")
	flag.StringVar(&collection, "collection", "", "collection to list")
	flag.StringVar(&idField, "id", "id", "id field of the rows")
	flag.IntVar(&page_, "p", 0, "page of result, from 0")
	flag.IntVar(&pageSize, "s", 10, "page size of result")
	flag.StringVar(&sort, "sort", "", "sort of result, e.g. site,count desc")
	flag.StringVar(&search, "filter", "", "filter expression, e.g. site=north,count>3")
	flag.BoolVar(&all, "all", false, "download every matching row")
	flag.BoolVar(&encode, "encode", false, "only print the encoded query")
	flag.BoolVar(&debug, "d", false, "debug mode")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")
	flag.Parse()
	if debug {
		log.SetDebug()
	}

	sortList, err := order.Parse(sort)
	if err != nil {
		fail("sort error: %v", err)
	}
	filters, err := filter.ParseExpression(search)
	if err != nil {
		fail("filter error: %v", err)
	}
	if encode {
		q := page.NewQuery(page_*pageSize, pageSize, page.NewKey(filters, sortList))
		s, err := page.EncodeQuery(q)
		if err != nil {
			fail("encode error: %v", err)
		}
		fmt.Println(s)
		return
	}
	if collection == "" {
		fail("-collection is required")
	}

	cli := client.New[row](collection, client.Options{BaseURL: serverURL, Token: token, Timeout: timeout, Debug: debug})
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if all {
		res, err := cli.DownloadAll(ctx, filters, sortList)
		if err != nil {
			fail("download error: %v", err)
		}
		printResult(res.Items, res.Total)
		return
	}

	updates := make(chan struct{}, 1)
	errs := make(chan error, 1)
	v := view.New[string, row](cli.Fetch, func(r row) string {
		return fmt.Sprint(r[idField])
	}, view.Options{
		Name:     collection,
		PageSize: pageSize,
		Debounce: time.Millisecond,
		OnUpdate: func() {
			select {
			case updates <- struct{}{}:
			default:
			}
		},
		OnError: func(err error) { errs <- err },
	})
	defer v.Close()
	states := map[string]filter.State{}
	for _, d := range filters {
		states[d.Field] = filter.Preset(d)
	}
	v.SetFilters(states)
	for _, s := range sortList {
		for {
			if d, _ := v.Sort().Direction(s.Field); d == s.Direction {
				break
			}
			v.ToggleSort(s.Field)
		}
	}
	v.SetWindow(page_, pageSize)
	for {
		r := v.Rows()
		if !r.Loading {
			if r.Window.Page != page_ {
				log.Warnf("page %d is out of range, showing page %d", page_, r.Window.Page)
			}
			printResult(r.Items, r.Total)
			return
		}
		select {
		case <-updates:
		case err := <-errs:
			fail("list error: %v", err)
		case <-ctx.Done():
			fail("list error: %v", ctx.Err())
		}
	}
}

func printResult(items []row, total int) {
	bs, err := json.MarshalIndent(page.Result[row]{Items: items, Total: total}, "", "  ")
	if err != nil {
		fail("output error: %v", err)
	}
	fmt.Println(string(bs))
}

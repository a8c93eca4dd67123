package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/DaoCloud/listcache/common"
	"github.com/DaoCloud/listcache/log"
	"github.com/DaoCloud/listcache/server"
	"github.com/DaoCloud/listcache/store"
	"github.com/DaoCloud/listcache/store/memory"
	"github.com/DaoCloud/listcache/utils/prommonitor"
	"github.com/DaoCloud/listcache/watcher"
)

var sites = []string{"north", "south", "east", "west"}

// generate adds n synthetic rows to every collection.
func generate(s store.Store, cols []common.Collection, n int) error {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, col := range cols {
		for i := 0; i < n; i++ {
			obj := map[string]interface{}{
				col.IDField: uuid.NewString(),
				"seq":       i,
				"site":      sites[rand.Intn(len(sites))],
				"count":     rand.Intn(1000),
				"created":   start.Add(time.Duration(i) * time.Hour).Format(time.RFC3339),
			}
			if err := s.OnResourceAdded(col.Name, obj); err != nil {
				return err
			}
		}
	}
	return nil
}

func loadFromConfig(configFile string, gen int) (watcher.Watcher, store.Store, error) {
	cfg, err := common.LoadConfig(configFile)
	if err != nil {
		log.Errorf("config file load error: %v", err)
		return nil, nil, err
	}
	common.InitConfig(cfg)

	// component is up
	prommonitor.Up.WithLabelValues(prommonitor.ListServerComponent).Set(1)

	m := memory.NewMemoryStore(cfg.Collections)
	w := watcher.NewWatcher(cfg.Collections, m)
	if err := w.Start(); err != nil {
		return nil, nil, err
	}
	if gen > 0 {
		if err := generate(m, cfg.Collections, gen); err != nil {
			w.Stop()
			return nil, nil, err
		}
	}
	return w, m, nil
}

func main() {
	configFile := ""
	listen := ":80"
	debug := false
	mutable := false
	gen := 0
	flag.StringVar(&configFile, "c", "config/local.yaml", "config file path")
	flag.StringVar(&listen, "a", ":80", "listen port")
	flag.BoolVar(&debug, "d", false, "debug mode")
	flag.BoolVar(&mutable, "m", false, "accept POST/PUT/DELETE on collections")
	flag.IntVar(&gen, "gen", 0, "generate N rows per collection")
	flag.Parse()
	if debug {
		log.SetDebug()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		panic(fmt.Errorf("start watcher error: %v", err))
	}
	if err := fw.Add(configFile); err != nil {
		panic(fmt.Errorf("watch %s error: %v", configFile, err))
	}
	w, s, err := loadFromConfig(configFile, gen)
	if err != nil {
		log.Errorf("load from config file error: %v", err)
		os.Exit(1)
	}
	ser := server.NewMuxServer(server.Options{ListenAddr: listen, Mutable: mutable}, s)
	go func() {
		for {
			select {
			case <-fw.Events:
				rw, rs, err := loadFromConfig(configFile, gen)
				if err != nil {
					prommonitor.ConfigReload.WithLabelValues("failed").Inc()
					log.Errorf("reload config error: %v", err)
					continue
				}
				w.Stop()
				w = rw
				ser.ResetStore(rs)
				prommonitor.ConfigReload.WithLabelValues("success").Inc()
				log.Infof("auto reloaded config successfully")
			case e := <-fw.Errors:
				log.Errorf("watch config file error: %v", e)
			}
			time.Sleep(time.Second * 5)
		}
	}()
	if err := ser.Run(); err != nil {
		log.Errorf("server exited: %v", err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/vialegal/docket/internal/api"
	"github.com/vialegal/docket/internal/blob"
	"github.com/vialegal/docket/internal/common"
	"github.com/vialegal/docket/internal/extract"
	"github.com/vialegal/docket/internal/llm"
	"github.com/vialegal/docket/internal/loader"
	"github.com/vialegal/docket/internal/manager"
	"github.com/vialegal/docket/internal/record"
	"github.com/vialegal/docket/internal/store"
	"github.com/vialegal/docket/internal/suggest"
)

func main() {
	logger := common.Logger()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := godotenv.Load(); err != nil {
		logger.Warn("docket: .env file not loaded", "error", err)
	} else {
		logger.Info("docket: environment loaded from .env")
	}

	addr := flag.String("addr", ":8082", "listen address")
	dbPath := flag.String("db", "", "path to the SQLite database (overrides DOCKET_DB_PATH)")
	blobRoot := flag.String("blobs", defaultBlobRoot(), "directory for annex blob storage (ignored with DOCKET_S3_BUCKET)")
	uploadRoot := flag.String("uploads", "", "directory for temporary upload workspaces")
	flag.Parse()

	logger.Info("docket: startup initiated", "addr", *addr)

	storeCfg, err := store.LoadConfig()
	if err != nil {
		logger.Error("docket: store config load failed", "error", err)
		fmt.Println("store config error:", err)
		os.Exit(1)
	}
	if trimmed := strings.TrimSpace(*dbPath); trimmed != "" {
		storeCfg.Path = trimmed
	}
	st, err := store.OpenWithConfig(storeCfg)
	if err != nil {
		logger.Error("docket: store open failed", "error", err)
		fmt.Println("store error:", err)
		os.Exit(1)
	}
	defer st.Close()

	blobs, err := openBlobStorage(ctx, *blobRoot)
	if err != nil {
		logger.Error("docket: blob storage init failed", "error", err)
		fmt.Println("blob storage error:", err)
		os.Exit(1)
	}

	provider := llm.NewProvider()
	logger.Info("docket: llm provider ready", "provider", provider.Name())

	suggester := suggest.NewTwoStage(provider)
	dispatcher := suggest.NewDispatcher(provider)
	mgr := manager.New(st, blobs, suggester, dispatcher)

	server, err := api.NewServer(mgr, st, provider, buildExtractors(provider), serverConfig(*uploadRoot))
	if err != nil {
		logger.Error("docket: server construction failed", "error", err)
		fmt.Println("server error:", err)
		os.Exit(1)
	}

	httpSrv := &http.Server{Addr: *addr, Handler: server}
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("docket: shutdown incomplete", "error", err)
		}
	}()

	logger.Info("docket: server listening", "addr", *addr, "health", "/healthz")
	fmt.Printf("Serving on %s\n", *addr)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("docket: server stopped", "error", err)
		fmt.Println("server stopped:", err)
		os.Exit(1)
	}
	logger.Info("docket: server stopped")
}

// buildExtractors registers one engine per uploadable document kind. All
// engines share the provider and the plain-text loader; PDF parsing sits
// behind the DocumentLoader interface.
func buildExtractors(provider llm.Provider) map[record.Kind]extract.Extractor {
	ldr := &loader.TextLoader{}
	return map[record.Kind]extract.Extractor{
		record.KindBill:               extract.New(provider, ldr, func() *record.Bill { return &record.Bill{} }).Erased(),
		record.KindPromissoryNote:     extract.New(provider, ldr, func() *record.PromissoryNote { return &record.PromissoryNote{} }).Erased(),
		record.KindDemandText:         extract.New(provider, ldr, func() *record.DemandText { return &record.DemandText{} }).Erased(),
		record.KindDispatchResolution: extract.New(provider, ldr, func() *record.DispatchResolution { return &record.DispatchResolution{} }).Erased(),
		record.KindExceptions:         extract.New(provider, ldr, func() *record.Exceptions { return &record.Exceptions{} }).Erased(),
		record.KindFraudReport:        extract.New(provider, ldr, func() *record.FraudReport { return &record.FraudReport{} }).Erased(),
	}
}

func openBlobStorage(ctx context.Context, root string) (blob.Storage, error) {
	logger := common.Logger()
	if bucket := strings.TrimSpace(os.Getenv("DOCKET_S3_BUCKET")); bucket != "" {
		prefix := strings.TrimSpace(os.Getenv("DOCKET_S3_PREFIX"))
		logger.Info("docket: using s3 blob storage", "bucket", bucket, "prefix", prefix)
		return blob.NewS3Store(ctx, bucket, prefix)
	}
	logger.Info("docket: using filesystem blob storage", "root", root)
	return blob.NewFileStore(root)
}

func serverConfig(uploadRoot string) *api.Config {
	if strings.TrimSpace(uploadRoot) == "" {
		return nil
	}
	return &api.Config{UploadRoot: strings.TrimSpace(uploadRoot)}
}

func defaultBlobRoot() string {
	if env := strings.TrimSpace(os.Getenv("DOCKET_BLOB_ROOT")); env != "" {
		return env
	}
	return filepath.Join("data", "blobs")
}

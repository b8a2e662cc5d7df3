package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"

	"github.com/storyloom/storyloom/prompts"
	"github.com/storyloom/storyloom/tools"
)

func main() {
	envFile := flag.String("env", ".env", "Path to environment file")
	enableSSE := flag.Bool("sse", false, "Enable SSE server")
	sseAddr := flag.String("sse-addr", ":8080", "Address for SSE server to listen on")
	sseBasePath := flag.String("sse-base-path", "/mcp", "Base path for SSE endpoints")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		log.Printf("Warning: Error loading env file %s: %v\n", *envFile, err)
	}

	mcpServer := server.NewMCPServer(
		"storyloom",
		"1.0.0",
		server.WithLogging(),
		server.WithPromptCapabilities(true),
	)

	tools.RegisterToolManagerTool(mcpServer)

	enableTools := strings.Split(os.Getenv("ENABLE_TOOLS"), ",")
	allToolsEnabled := len(enableTools) == 1 && enableTools[0] == ""

	isEnabled := func(toolName string) bool {
		return allToolsEnabled || slices.Contains(enableTools, toolName)
	}

	if isEnabled("story") {
		tools.RegisterStoryTools(mcpServer)
	}

	if isEnabled("recall") {
		tools.RegisterRecallTools(mcpServer)
	}

	if isEnabled("research") {
		tools.RegisterResearchTool(mcpServer)
	}

	if isEnabled("compare") {
		tools.RegisterCompareTool(mcpServer)
	}

	prompts.RegisterStoryPrompts(mcpServer)

	// Check if SSE server should be enabled
	if *enableSSE || os.Getenv("ENABLE_SSE") == "true" {
		sseServer := server.NewSSEServer(mcpServer, *sseBasePath)

		go func() {
			log.Printf("Starting SSE server on %s with base path %s", *sseAddr, *sseBasePath)
			if err := sseServer.Start(*sseAddr); err != nil {
				log.Fatalf("Failed to start SSE server: %v", err)
			}
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		sig := <-sigCh
		log.Printf("Received signal %v, shutting down...", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := sseServer.Shutdown(ctx); err != nil {
			log.Printf("Error during SSE server shutdown: %v", err)
		}
		log.Println("SSE server shutdown complete")
	} else {
		// Use stdio server as before
		if err := server.ServeStdio(mcpServer); err != nil {
			panic(fmt.Sprintf("Server error: %v", err))
		}
	}
}

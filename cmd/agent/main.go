package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"research-agent/internal/di"
	"research-agent/internal/infrastructure/config"
	"research-agent/internal/infrastructure/env"
)

func main() {
	envService := env.NewEnvService()

	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	goal := strings.TrimSpace(strings.Join(os.Args[1:], " "))
	if goal == "" {
		fmt.Println("\nEnter a research goal:")
		reader := bufio.NewReader(os.Stdin)
		goal, err = reader.ReadString('\n')
		if err != nil && goal == "" {
			log.Fatal("Failed to read input: ", err)
		}
		goal = strings.TrimSpace(goal)
	}
	if goal == "" {
		log.Fatal("Research goal is empty")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Run.Timeout)
	defer cancel()

	container, err := di.NewContainer(ctx, cfg, di.Secrets{
		OpenRouterAPIKey: envService.MustGet("OPENROUTER_API_KEY"),
		OpenRouterModel:  envService.MustGet("OPENROUTER_MODEL_NAME"),
	}, goal)
	if err != nil {
		log.Fatalf("Initialization failed: %v", err)
	}

	container.Logger.Info("Research started", "goal", goal, "appEnv", envService.AppEnv())
	fmt.Println("\nAgent is researching...")

	result, err := container.Research.Execute(ctx, goal)
	if err != nil {
		container.Logger.Error("Research failed", "error", err)
		fmt.Printf("\nResearch failed: %v\n", err)
		if result != nil && result.FinalReport != "" {
			fmt.Println("\nPARTIAL REPORT:")
			fmt.Println(result.FinalReport)
		}
		container.Close()
		os.Exit(1)
	}

	container.Logger.Info("Research completed",
		"steps", result.Steps,
		"subtopics", len(result.Subtopics),
		"visited", len(result.VisitedURLs),
	)
	fmt.Println("\nFINAL REPORT:")
	fmt.Println(result.FinalReport)

	if err := container.Close(); err != nil {
		log.Printf("Shutdown: %v", err)
	}
}

package main

import (
	"context"
	"fmt"

	"github.com/SOLUCIONESSYCOM/go_warehouse_sink/src/app"
)

func serve() {
	ctx := context.Background()

	service, err := app.NewService(ctx)
	if err != nil {
		panic(fmt.Sprintf("error creating sink service: %v", err))
	}
	defer service.Close(ctx)

	if err := service.Run(ctx); err != nil {
		panic(fmt.Sprintf("error running sink service: %v", err))
	}
}

func main() {

	fmt.Println("Starting CDC sink...")
	serve()
	fmt.Println("CDC sink stopped")
}

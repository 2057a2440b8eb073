package main

//go:generate swag init -g cmd/engine/main.go -o docs

// @title           Equity Strategy Engine API
// @version         0.1.0
// @description     Strategy rules, ticks, positions, orders and decision logs.
// @host            localhost:8080
// @BasePath        /
// @schemes         http

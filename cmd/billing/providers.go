package main

// Notifier blank imports: each import activates a self-registering adapter.

import (
	_ "github.com/jegasuite/jega/internal/adapter/email"
	_ "github.com/jegasuite/jega/internal/adapter/lognotify"
)

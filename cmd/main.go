// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"github.com/lirios/bootc-status/internal/cmd"
	"github.com/lirios/bootc-status/internal/logger"
)

func main() {
	if err := cmd.Execute(); err != nil {
		logger.Fatal(err)
	}
}

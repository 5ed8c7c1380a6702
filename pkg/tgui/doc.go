// Package tgui provides small Telegram UI helpers:
//   - a content builder with safe HTML escaping
//   - inline keyboard conversion for the telebot adapter
//   - text splitting and embed rendering within Telegram's limits
package tgui

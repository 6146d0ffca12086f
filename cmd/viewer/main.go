// Viewer is a read-only administrative console: it queries a running
// relay's admin endpoints and renders the registry, the backlog, and the
// monitoring stats as tables.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"

	"chatty-relay/observability"
	"chatty-relay/protocol"
)

func main() {
	baseURL := flag.String("relay", "http://localhost:8080", "Base URL of the relay admin surface")
	flag.Parse()

	httpClient := &http.Client{Timeout: 5 * time.Second}

	var clients map[string]string
	if err := fetch(httpClient, *baseURL+"/chathub/clients", &clients); err != nil {
		log.Fatal("Error while fetching clients: ", err)
	}

	var messages []protocol.WireMessage
	if err := fetch(httpClient, *baseURL+"/chathub/message", &messages); err != nil {
		log.Fatal("Error while fetching backlog: ", err)
	}

	var stats observability.RelayStats
	if err := fetch(httpClient, *baseURL+"/chathub/stats", &stats); err != nil {
		log.Fatal("Error while fetching stats: ", err)
	}

	color.Green.Println("  ====== Connected clients ======")
	clientsTable := newTable([]string{"Handle", "Username"})
	for handle, username := range clients {
		if username == "" {
			username = "(unregistered)"
		}
		clientsTable.Append([]string{handle, username})
	}
	clientsTable.Render()

	color.Green.Println("  ====== Backlog ======")
	messagesTable := newTable([]string{"Timestamp", "Kind", "Sender", "Recipient", "Content"})
	for _, m := range messages {
		recipient := "all"
		if m.Recipient != nil {
			recipient = m.Recipient.Username
		}
		messagesTable.Append([]string{
			m.CreatedAt.Format(time.RFC3339),
			m.Kind,
			m.Sender.Username,
			recipient,
			m.Content,
		})
	}
	messagesTable.Render()

	color.Green.Println("  ====== Relay stats ======")
	statsTable := newTable([]string{"Metric", "Value"})
	statsTable.AppendBulk([][]string{
		{"Connections", fmt.Sprint(stats.Connections)},
		{"Registered", fmt.Sprint(stats.Registered)},
		{"Broadcasts", fmt.Sprint(stats.Broadcasts)},
		{"Unicasts", fmt.Sprint(stats.Unicasts)},
		{"Recipient misses", fmt.Sprint(stats.RecipientMisses)},
		{"Dropped invalid", fmt.Sprint(stats.DroppedInvalid)},
		{"Replayed messages", fmt.Sprint(stats.ReplayedMessages)},
		{"Delivery failures", fmt.Sprint(stats.DeliveryFailures)},
		{"CPU %", fmt.Sprintf("%.1f", stats.CPUPercent)},
		{"RSS bytes", fmt.Sprint(stats.RSSBytes)},
	})
	statsTable.Render()
}

func newTable(header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func fetch(httpClient *http.Client, url string, v any) error {
	resp, err := httpClient.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s from %s", resp.Status, url)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

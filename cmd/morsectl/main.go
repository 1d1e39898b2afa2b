// Command morsectl plays the remote peer of a morsepad keyer: it keys text
// as DOT/DASH/VALIDATE/SPACE commands, sends translations, and watches the
// device topics.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/spf13/cobra"

	"morsepad/bridge"
	"morsepad/gesture"
	"morsepad/morse"
	"morsepad/protocol"
)

var (
	brokerHost  string
	brokerPort  int
	topicPrefix string
	deviceID    string
	qos         int
	sendGap     time.Duration

	// connSeq numbers the connections one process opens.
	connSeq atomic.Uint32
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "morsectl",
		Short:        "Remote peer for a morsepad keyer",
		SilenceUsage: true,
	}
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&brokerHost, "broker", bridge.DefaultBroker, "MQTT broker host")
	flags.IntVar(&brokerPort, "port", bridge.DefaultPort, "MQTT broker port")
	flags.StringVar(&topicPrefix, "prefix", bridge.DefaultTopicPrefix, "topic prefix")
	flags.StringVar(&deviceID, "device", bridge.DefaultDeviceID, "device id")
	flags.IntVar(&qos, "qos", 0, "MQTT QoS (0-2)")

	rootCmd.AddCommand(newSendCmd())
	rootCmd.AddCommand(newTranslateCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newEncodeCmd())
	rootCmd.AddCommand(newDecodeCmd())
	rootCmd.AddCommand(newTableCmd())
	return rootCmd
}

func newSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <text>",
		Short: "Key text on the device as remote gestures",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if !morse.Encodable(text) {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: characters without a Morse code are skipped")
			}
			return publishAll(cmd.Context(), keyingPlan(text), sendGap)
		},
	}
	cmd.Flags().DurationVar(&sendGap, "gap", 100*time.Millisecond, "delay between commands")
	return cmd
}

func newTranslateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "translate <text>",
		Short: "Send a translated text line to the device",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg := protocol.Command{Kind: protocol.CommandTranslation, Text: strings.Join(args, " ")}
			return publishAll(cmd.Context(), []protocol.Command{msg}, 0)
		},
	}
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print device notifications until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return watch(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func newEncodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encode <text>",
		Short: "Print text as '/'-separated Morse",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), morse.EncodeText(strings.Join(args, " ")))
		},
	}
}

func newDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <code>",
		Short: "Decode '/'-separated Morse (words split by spaces)",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), morse.DecodeText(strings.Join(args, " ")))
		},
	}
}

func newTableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "table",
		Short: "Print the Morse code table the keyer resolves against",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			writeTable(cmd.OutOrStdout())
		},
	}
}

func writeTable(out io.Writer) {
	for _, r := range morse.Characters() {
		seq, _ := morse.Encode(r)
		fmt.Fprintf(out, "%c  %s\n", r, seq)
	}
}

// keyingPlan turns text into the command stream a human would key: symbols,
// VALIDATE after each character, SPACE between words.
func keyingPlan(text string) []protocol.Command {
	var plan []protocol.Command
	for _, word := range strings.Fields(text) {
		start := len(plan)
		for _, r := range word {
			seq, ok := morse.Encode(r)
			if !ok {
				continue
			}
			for _, sym := range seq {
				g := gesture.Dot
				if sym == morse.Dash {
					g = gesture.Dash
				}
				plan = append(plan, protocol.GestureCommand(g))
			}
			plan = append(plan, protocol.GestureCommand(gesture.Validate))
		}
		if len(plan) > start {
			plan = append(plan, protocol.GestureCommand(gesture.Space))
		}
	}
	// No word space after the last word.
	if n := len(plan); n > 0 && plan[n-1].Gesture == gesture.Space {
		plan = plan[:n-1]
	}
	return plan
}

// peerClientID is unique per connection. A broker drops the older session
// when a client id is reused, so a watch running next to a send must not
// share one.
func peerClientID() string {
	return fmt.Sprintf("morsectl-%d-%d", os.Getpid(), connSeq.Add(1))
}

func clientOptions() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", brokerHost, brokerPort))
	opts.SetClientID(peerClientID())
	opts.SetConnectTimeout(10 * time.Second)
	return opts
}

func connect() (mqtt.Client, error) {
	client := mqtt.NewClient(clientOptions())
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to %s:%d: %w", brokerHost, brokerPort, token.Error())
	}
	return client, nil
}

func publishAll(ctx context.Context, cmds []protocol.Command, gap time.Duration) error {
	if len(cmds) == 0 {
		return fmt.Errorf("nothing to send")
	}
	client, err := connect()
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	topic := bridge.TopicsFor(topicPrefix, deviceID).Inbound
	for i, c := range cmds {
		if i > 0 && gap > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(gap):
			}
		}
		token := client.Publish(topic, byte(qos), false, c.Encode())
		if token.Wait() && token.Error() != nil {
			return fmt.Errorf("publish %s: %w", c.Encode(), token.Error())
		}
	}
	return nil
}

// transcriptView tracks what the web page would show for the device stream.
type transcriptView struct {
	sequence string
	text     strings.Builder
}

func (v *transcriptView) apply(n protocol.Notification) string {
	switch n.Kind {
	case protocol.SequenceUpdated:
		v.sequence = n.Sequence
	case protocol.CharacterResolved:
		v.sequence = ""
		v.text.WriteRune(n.Char)
	case protocol.WordSpace:
		v.text.WriteByte(' ')
	case protocol.Cleared:
		v.sequence = ""
	}
	return fmt.Sprintf("%-28s | seq %-6s | %s", n.Encode(), v.sequence, v.text.String())
}

func watch(ctx context.Context, out io.Writer) error {
	client, err := connect()
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	lines := make(chan string, 64)
	view := &transcriptView{}
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		n, ok := protocol.ParseNotification(string(msg.Payload()))
		line := string(msg.Payload())
		if ok {
			line = view.apply(n)
		}
		select {
		case lines <- line:
		default:
		}
	}
	topics := bridge.TopicsFor(topicPrefix, deviceID)
	for _, topic := range []string{topics.Outbound, topics.Status} {
		if token := client.Subscribe(topic, byte(qos), handler); token.Wait() && token.Error() != nil {
			return fmt.Errorf("subscribe %s: %w", topic, token.Error())
		}
	}
	fmt.Fprintf(out, "watching %s and %s (Ctrl+C to stop)\n", topics.Outbound, topics.Status)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line := <-lines:
			fmt.Fprintln(out, line)
		}
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/voxline/voxline/pkg/transports"
	twiliotransport "github.com/voxline/voxline/pkg/transports/twilio"
)

type callConfig struct {
	Twilio twiliotransport.Config `mapstructure:"twilio"`
}

func main() {
	configPath := flag.String("config", "examples/bank/config.yaml", "")
	from := flag.String("from", "", "")
	to := flag.String("to", "", "")
	voiceURL := flag.String("voice_url", "", "")
	sendDigits := flag.String("send_digits", "", "")
	flag.Parse()
	if *from == "" || *to == "" {
		fmt.Println("usage: make_call -from=+123 -to=+456 [-config=...]")
		os.Exit(1)
	}
	cfg, err := loadCallConfig(*configPath)
	if err != nil {
		fmt.Println("config error:", err)
		os.Exit(1)
	}
	dialer := twiliotransport.NewDialer(cfg.Twilio)
	var callSID string
	if *sendDigits != "" {
		callSID, err = dialer.DialWithOptions(context.Background(), *to, *from, *voiceURL, transports.DialOptions{SendDigits: *sendDigits})
	} else {
		callSID, err = dialer.Dial(context.Background(), *to, *from, *voiceURL)
	}
	if err != nil {
		fmt.Println("call error:", err)
		os.Exit(1)
	}
	fmt.Println("call_sid:", callSID)
}

func loadCallConfig(path string) (callConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return callConfig{}, err
	}
	var cfg callConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return callConfig{}, err
	}
	cfg.Twilio.AccountSID = os.ExpandEnv(cfg.Twilio.AccountSID)
	cfg.Twilio.AuthToken = os.ExpandEnv(cfg.Twilio.AuthToken)
	cfg.Twilio.PublicURL = os.ExpandEnv(cfg.Twilio.PublicURL)
	return cfg, nil
}

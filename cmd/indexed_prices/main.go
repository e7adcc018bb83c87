package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/icodeforyou/somenergia-go/config"
	"github.com/icodeforyou/somenergia-go/hours"
	"github.com/icodeforyou/somenergia-go/series"
	"github.com/icodeforyou/somenergia-go/somenergia"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cnfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}
	loc, err := hours.LoadLocation(cnfg.Timezone)
	if err != nil {
		panic(err)
	}

	se := somenergia.New(cnfg.SomEnergia.BaseURL, cnfg.SomEnergia.Timeout)
	res, err := se.Fetch(context.Background(), cnfg.SomEnergia.Tariff, cnfg.SomEnergia.GeoZone)
	if err != nil {
		panic(err)
	}

	points, err := series.NewNormalizer(loc).Normalize(res)
	if err != nil {
		panic(err)
	}

	for _, p := range points {
		price := "-"
		if p.Price.Valid {
			price = p.Price.Decimal.String()
		}
		fmt.Printf("Date: %s, Hour: %d, Price: %s\n",
			p.Time.Format("2006-01-02"), p.Time.Hour(), price)
	}
}

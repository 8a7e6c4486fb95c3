package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	dbPath := flag.String("db", "headball.db", "Path to SQLite database")
	adminCode := flag.String("admin-code", "", "Admin code for forced game termination (empty disables)")
	baseURL := flag.String("base-url", "http://localhost:8080", "Public base URL used in spectate QR codes")
	flag.Parse()

	db, err := OpenDB(*dbPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	journal := NewEventJournal(db)

	hub := NewHub(db, journal)
	rooms := NewRoomManager()
	end := NewGameEnd(rooms, hub, db, journal, *adminCode)
	sim := NewSimulation(rooms, hub, end, journal)
	mm := NewMatchmaker(rooms, hub, journal)
	hub.AttachCore(rooms, mm, sim, end)

	go hub.Run()
	go rooms.Run()
	go mm.Run()
	go sim.Run()

	mux := SetupRoutes(hub, *baseURL)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	server := &http.Server{Addr: *addr, Handler: mux}

	go func() {
		log.Printf("headball server starting on %s", *addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down...")
	// Force-end in-flight matches so players get an outcome and results
	// persist before the process exits
	for _, room := range rooms.ActiveRooms() {
		end.HandleForcedGameEnd(room.ID, EndTechnical, "")
	}
	server.Close()
	sim.Stop()
	mm.Stop()
	rooms.Stop()
	journal.Stop()
}

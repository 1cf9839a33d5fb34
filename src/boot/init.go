package boot

import (
	"log"
	"time"

	"github.com/deathmover/sgh-crm-backend-new/src/db"
	"github.com/deathmover/sgh-crm-backend-new/src/lib"
	"github.com/deathmover/sgh-crm-backend-new/src/membership"
	"github.com/deathmover/sgh-crm-backend-new/src/models"
	"github.com/deathmover/sgh-crm-backend-new/src/utils"
	"gorm.io/gorm"
)

func InitDb() *gorm.DB {
	db := db.GetDb()

	err := db.AutoMigrate(
		&models.Machine{},
		&models.Customer{},
		&models.Entry{},
		&models.Booking{},
		&models.MembershipPlan{},
		&models.CustomerMembership{},
		&models.Setting{},
	)
	if err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}

	return db
}

// InitScheduler registers the minute sweeps: auto-ending sessions that ran
// out their predefined duration and expiring lapsed memberships.
func InitScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("An error has occurred. Check logs for info")
		return
	}
	if _, err := lib.CreateCronJob(func() {
		ended := utils.AutoEndExpiredEntries()
		if ended > 0 {
			log.Printf("auto-ended %d session(s)", ended)
		}
	}, time.Minute); err != nil {
		log.Printf("Error scheduling auto-end sweep: %s\n", err.Error())
		return
	}
	if _, err := lib.CreateCronJob(func() {
		expired, err := membership.ExpireSweep()
		if err != nil {
			log.Printf("Error expiring memberships: %s\n", err.Error())
			return
		}
		if expired > 0 {
			log.Printf("expired %d membership(s)", expired)
		}
	}, time.Minute); err != nil {
		log.Printf("Error scheduling membership expiry sweep: %s\n", err.Error())
		return
	}
	log.Println("Jobs in queue:", len(sched.Jobs()))
	sched.Start()
}

func StopScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("Error retrieving Scheduler. Check logs for info")
		return
	}
	err = sched.Shutdown()
	if err != nil {
		log.Println("An error has occurred while stopping Scheduler. Check logs for info")
		return
	}
}
